// Package mailer renders the service's emails and delivers them over SMTP,
// through an AMQP queue, or into the log.
package mailer

import (
	"context"
	"fmt"

	"github.com/AnthoniusHendriyanto/account-auth/config"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
)

type Transport interface {
	Send(ctx context.Context, to, subject, html string) error
	Close() error
}

// New picks the transport named by cfg.Transport.
func New(cfg config.MailConfig, log logging.Logger) (Transport, error) {
	switch cfg.Transport {
	case "smtp":
		if cfg.SMTPHost == "" || cfg.From == "" {
			return nil, fmt.Errorf("smtp transport needs SMTP_HOST and MAIL_FROM")
		}
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From), nil
	case "amqp":
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("amqp transport needs MAIL_AMQP_URL")
		}
		return NewAMQPMailer(cfg.AMQPURL, cfg.AMQPQueue)
	case "", "log":
		return NewLogMailer(log), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
