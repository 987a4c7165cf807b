package domain

import "time"

type OTPType string

const (
	OTPTypeEmailVerification OTPType = "email_verification"
	OTPTypePasswordReset     OTPType = "password_reset"
)

// OneTimeCode is an unused code. Consuming a code deletes it.
type OneTimeCode struct {
	ID        string
	UserID    string
	Code      string
	Type      OTPType
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (o *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
