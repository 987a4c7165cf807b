package mailer

import (
	"context"

	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
)

// LogMailer writes mail to the log instead of sending it. Used in development.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	m.log.Info(ctx, "mail not delivered (log transport)", "to", to, "subject", subject, "bytes", len(html))
	m.log.Debug(ctx, "mail body", "html", html)
	return nil
}

func (m *LogMailer) Close() error { return nil }
