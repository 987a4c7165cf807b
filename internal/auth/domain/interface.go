package domain

//go:generate mockgen -destination=../../mocks/mock_domain.go -package=mocks github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain UserRepository,OTPRepository,RevocationStore,Mailer

import (
	"context"
	"time"
)

// UserRepository persists user identity records. Lookups return (nil, nil)
// when nothing matches. Create returns ErrEmailTaken or ErrUsernameTaken when
// the store's unique constraints reject the insert.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	// ResetPassword stores the new hash and clears the reset token fields.
	ResetPassword(ctx context.Context, id, passwordHash string) error
	// UpdateProfile applies the non-nil fields of update. Like Create it
	// reports ErrEmailTaken or ErrUsernameTaken on a unique conflict.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
	// Delete reports whether a record was removed. The user's codes go with it.
	Delete(ctx context.Context, id string) (bool, error)
}

// OTPRepository persists one-time codes.
type OTPRepository interface {
	// Replace stores otp as the only code of (otp.UserID, otp.Type) in a
	// single atomic write. It returns ErrOtpCodeTaken if (code, type) is held
	// by another row.
	Replace(ctx context.Context, otp *OneTimeCode) error
	FindByCodeAndType(ctx context.Context, code string, otpType OTPType) (*OneTimeCode, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByUserAndType(ctx context.Context, userID string, otpType OTPType) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RevocationStore remembers refresh tokens that were explicitly revoked.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Mailer delivers a rendered HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}
