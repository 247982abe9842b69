// Package commands recognises productivity intents in user text and runs them
// against the workspace without involving the language model.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ent0n29/jarvis/internal/workspace"
)

const (
	sendEmailPrefix = "send email to "

	DefaultSubject = "Message from Jarvis"
	DefaultBody    = "Hi,\n\nThis message was sent on my behalf by Jarvis.\n"

	listSize = 5
)

var (
	inboxPhrases    = []string{"read my emails", "check my email", "check my inbox", "latest emails"}
	calendarPhrases = []string{"what's on my calendar", "upcoming events", "my calendar", "my schedule"}
	emailDelimiters = []string{" subject ", " about ", " body "}
)

// Email is a parsed send-email request.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Interceptor matches literal trigger phrases. A nil workspace disables every
// intent.
type Interceptor struct {
	ws workspace.Workspace
}

func New(ws workspace.Workspace) *Interceptor {
	return &Interceptor{ws: ws}
}

// Intercept never fails: collaborator errors become an apology reply.
func (i *Interceptor) Intercept(ctx context.Context, userID, text string) Decision {
	if i == nil || i.ws == nil {
		return Continue{}
	}
	if email, ok := ParseSendEmail(text); ok {
		return i.sendEmail(ctx, userID, email)
	}
	lower := strings.ToLower(text)
	if containsAny(lower, inboxPhrases) {
		return i.readInbox(ctx, userID)
	}
	if containsAny(lower, calendarPhrases) {
		return i.calendar(ctx, userID)
	}
	return Continue{}
}

func (i *Interceptor) sendEmail(ctx context.Context, userID string, email Email) Decision {
	status, err := i.ws.SendEmail(ctx, userID, email.To, email.Subject, email.Body)
	if err != nil {
		log.Printf("send email intent failed: user=%s err=%v", userID, err)
		return Intercepted{Intent: IntentSendEmail, Reply: apology("send that email", err)}
	}
	if status == "" {
		status = "Email sent"
	}
	return Intercepted{
		Intent: IntentSendEmail,
		Reply:  fmt.Sprintf("%s. To: %s, subject: %q.", strings.TrimRight(status, "."), email.To, email.Subject),
	}
}

func (i *Interceptor) readInbox(ctx context.Context, userID string) Decision {
	emails, err := i.ws.RecentEmails(ctx, userID, listSize)
	if err != nil {
		log.Printf("read inbox intent failed: user=%s err=%v", userID, err)
		return Intercepted{Intent: IntentReadInbox, Reply: apology("read your emails", err)}
	}
	if len(emails) == 0 {
		return Intercepted{Intent: IntentReadInbox, Reply: "Your inbox has no recent emails."}
	}
	var b strings.Builder
	b.WriteString("Here are your latest emails:")
	for n, e := range emails {
		fmt.Fprintf(&b, "\n%d. %s", n+1, e)
	}
	return Intercepted{Intent: IntentReadInbox, Reply: b.String()}
}

func (i *Interceptor) calendar(ctx context.Context, userID string) Decision {
	events, err := i.ws.UpcomingEvents(ctx, userID, listSize)
	if err != nil {
		log.Printf("calendar intent failed: user=%s err=%v", userID, err)
		return Intercepted{Intent: IntentCalendar, Reply: apology("check your calendar", err)}
	}
	if len(events) == 0 {
		return Intercepted{Intent: IntentCalendar, Reply: "You have no upcoming events."}
	}
	var b strings.Builder
	b.WriteString("Here are your upcoming events:")
	for _, ev := range events {
		fmt.Fprintf(&b, "\n- %s (%s)", ev.Summary, ev.Start)
	}
	return Intercepted{Intent: IntentCalendar, Reply: b.String()}
}

func apology(action string, err error) string {
	if errors.Is(err, workspace.ErrNotConnected) {
		return fmt.Sprintf("Sorry, I couldn't %s because your account isn't connected yet.", action)
	}
	return fmt.Sprintf("Sorry, I couldn't %s right now. Please try again later.", action)
}

// ParseSendEmail parses "send email to <to> [subject <s> [body <b>] | about <t> | body <b>]".
// The prefix and delimiters match case-insensitively. ok is false when the
// prefix is missing or the recipient is empty.
func ParseSendEmail(text string) (Email, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(asciiLower(trimmed), sendEmailPrefix) {
		return Email{}, false
	}
	to, tail, delim := splitAt(trimmed[len(sendEmailPrefix):], emailDelimiters)

	email := Email{To: strings.TrimSpace(to)}
	if email.To == "" {
		return Email{}, false
	}

	switch delim {
	case " subject ":
		subject, body, _ := splitAt(tail, []string{" body "})
		email.Subject = strings.TrimSpace(subject)
		email.Body = strings.TrimSpace(body)
	case " about ":
		if topic := strings.TrimSpace(tail); topic != "" {
			email.Subject = "About " + topic
			email.Body = fmt.Sprintf("Hi,\n\nI wanted to get in touch about %s.\n\nBest regards", topic)
		}
	case " body ":
		email.Body = strings.TrimSpace(tail)
	}

	if email.Subject == "" {
		email.Subject = DefaultSubject
	}
	if email.Body == "" {
		email.Body = DefaultBody
	}
	return email, true
}

// splitAt cuts s around the earliest delimiter. Delimiters are space-padded
// words; s is treated as if it started and ended with a space so a delimiter
// word at either end still matches.
func splitAt(s string, delims []string) (before, after, delim string) {
	padded := " " + asciiLower(s) + " "
	best := -1
	for _, d := range delims {
		if idx := strings.Index(padded, d); idx >= 0 && (best < 0 || idx < best) {
			best, delim = idx, d
		}
	}
	if best < 0 {
		return s, "", ""
	}
	// padded[i] is s[i-1].
	if best > 0 {
		before = s[:best-1]
	}
	if end := best - 1 + len(delim); end < len(s) {
		after = s[end:]
	}
	return before, after, delim
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
