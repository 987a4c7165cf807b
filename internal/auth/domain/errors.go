package domain

import "errors"

// Store-level conflicts. Repositories return these when a unique constraint
// rejects a write; services translate them into user-facing errors.
var (
	ErrEmailTaken    = errors.New("email already in use")
	ErrUsernameTaken = errors.New("username already in use")
	ErrOtpCodeTaken  = errors.New("otp code already in use")
)
