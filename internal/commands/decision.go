package commands

// Intent names a deterministic action the interceptor can run.
type Intent string

const (
	IntentSendEmail Intent = "send_email"
	IntentReadInbox Intent = "read_inbox"
	IntentCalendar  Intent = "calendar"
)

// Decision is the outcome of Intercept: either Intercepted or Continue.
type Decision interface {
	decision()
}

// Intercepted means the turn was fully handled and Reply goes back to the
// user; the model must not be called.
type Intercepted struct {
	Intent Intent
	Reply  string
}

// Continue means no intent matched and the turn goes to the model.
type Continue struct{}

func (Intercepted) decision() {}
func (Continue) decision()    {}
