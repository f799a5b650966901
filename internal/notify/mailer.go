package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer sends one email. Transport is pluggable.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer records emails in the log instead of sending them.
type LogMailer struct {
	Log zerolog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Log.Info().Str("to", to).Str("subject", subject).Msg("email queued")
	return nil
}
