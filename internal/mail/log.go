package mail

import (
	"context"
	"log"
)

// LogMailer writes messages to the log instead of sending them. It is
// the fallback transport when SMTP is not configured, standing in for a
// disposable test mailbox.
type LogMailer struct {
	From string
}

// SendWelcome logs the message it would have sent.
func (m *LogMailer) SendWelcome(ctx context.Context, email, name string) error {
	log.Printf("SMTP not configured, logging welcome email instead: from=%s to=%s name=%q", m.From, email, name)
	return nil
}
