package workspace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Google talks to Gmail and Google Calendar with per-user OAuth tokens stored
// as <tokenDir>/<userID>_google_token.json. Obtaining the token is done out of
// band.
type Google struct {
	oauth    *oauth2.Config
	tokenDir string
}

func NewGoogle(credentialsFile, tokenDir string) (*Google, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, gmail.GmailModifyScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	return &Google{oauth: cfg, tokenDir: tokenDir}, nil
}

func (g *Google) tokenPath(userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(g.tokenDir, userID+"_google_token.json"), nil
}

func (g *Google) clientOption(ctx context.Context, userID string) (option.ClientOption, error) {
	path, err := g.tokenPath(userID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("read google token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode google token: %w", err)
	}
	return option.WithTokenSource(g.oauth.TokenSource(ctx, &tok)), nil
}

func (g *Google) gmail(ctx context.Context, userID string) (*gmail.Service, error) {
	opt, err := g.clientOption(ctx, userID)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}
	return svc, nil
}

func (g *Google) SendEmail(ctx context.Context, userID, to, subject, body string) (string, error) {
	svc, err := g.gmail(ctx, userID)
	if err != nil {
		return "", err
	}
	msg := &gmail.Message{Raw: encodeMessage(to, subject, body)}
	if _, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return "Email sent successfully", nil
}

func (g *Google) RecentEmails(ctx context.Context, userID string, n int) ([]string, error) {
	svc, err := g.gmail(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := svc.Users.Messages.List("me").MaxResults(int64(n)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	out := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		full, err := svc.Users.Messages.Get("me", m.Id).Format("metadata").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get email %s: %w", m.Id, err)
		}
		out = append(out, full.Snippet)
	}
	return out, nil
}

func (g *Google) UpcomingEvents(ctx context.Context, userID string, n int) ([]Event, error) {
	opt, err := g.clientOption(ctx, userID)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}
	res, err := svc.Events.List("primary").
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(int64(n)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, toEvent(item))
	}
	return out, nil
}

func toEvent(item *calendar.Event) Event {
	ev := Event{Summary: item.Summary}
	if ev.Summary == "" {
		ev.Summary = "(No title)"
	}
	if item.Start != nil {
		ev.Start = item.Start.DateTime
		if ev.Start == "" {
			ev.Start = item.Start.Date
		}
	}
	return ev
}

// encodeMessage builds a plain-text RFC 2822 message in the URL-safe base64
// form Gmail expects. Header values are stripped of line breaks.
func encodeMessage(to, subject, body string) string {
	var b strings.Builder
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + headerValue(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
