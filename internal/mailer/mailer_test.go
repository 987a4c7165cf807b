package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/AnthoniusHendriyanto/account-auth/config"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOTP(t *testing.T) {
	html, err := RenderOTP(OTPData{AppName: "Account", Code: "042917", Purpose: "verify your email", ExpiresInMinutes: 5})
	require.NoError(t, err)

	assert.Contains(t, html, "042917")
	assert.Contains(t, html, "verify your email")
	assert.Contains(t, html, "5 minutes")
}

func TestRenderResetPassword(t *testing.T) {
	html, err := RenderResetPassword(ResetPasswordData{
		AppName:          "Account",
		Username:         "<script>alert(1)</script>",
		Link:             "http://localhost:8081/reset-password",
		ExpiresInMinutes: 60,
	})
	require.NoError(t, err)

	assert.Contains(t, html, `href="http://localhost:8081/reset-password"`)
	assert.NotContains(t, html, "<script>", "user data is escaped")
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 2525, "user", "pass", "noreply@example.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "a@x.com", "Your OTP code", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"a@x.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: a@x.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>"))
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "", "", "noreply@example.com")
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	assert.ErrorContains(t, m.Send(context.Background(), "a@x.com", "s", "b"), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "a@x.com", "s", "b"), context.Canceled)
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPMailer_Send(t *testing.T) {
	pub := &fakePublisher{}
	m := &AMQPMailer{ch: pub, queue: "mail.outbound"}

	require.NoError(t, m.Send(context.Background(), "a@x.com", "Reset Password Link", "<p>link</p>"))
	assert.Equal(t, "", pub.exchange)
	assert.Equal(t, "mail.outbound", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

	var job Job
	require.NoError(t, json.Unmarshal(pub.msg.Body, &job))
	assert.Equal(t, "a@x.com", job.To)
	assert.Equal(t, "Reset Password Link", job.Subject)
	assert.Equal(t, "<p>link</p>", job.HTML)

	pub.err = errors.New("channel closed")
	assert.Error(t, m.Send(context.Background(), "a@x.com", "s", "b"))
	assert.NoError(t, m.Close())
}

func TestNew(t *testing.T) {
	log := logging.Nop()

	tr, err := New(config.MailConfig{Transport: "log"}, log)
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, tr)
	assert.NoError(t, tr.Send(context.Background(), "a@x.com", "s", "b"))

	tr, err = New(config.MailConfig{Transport: "smtp", SMTPHost: "smtp.example.com", SMTPPort: 587, From: "noreply@example.com"}, log)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, tr)

	_, err = New(config.MailConfig{Transport: "smtp"}, log)
	assert.Error(t, err)

	_, err = New(config.MailConfig{Transport: "amqp"}, log)
	assert.Error(t, err)

	_, err = New(config.MailConfig{Transport: "pigeon"}, log)
	assert.Error(t, err)
}
