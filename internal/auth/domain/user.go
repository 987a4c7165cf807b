package domain

import "time"

// Provider is the identity source of an account.
type Provider string

const (
	ProviderCredentials Provider = "Credentials"
	ProviderGoogle      Provider = "Google"
	ProviderGitHub      Provider = "GitHub"
	ProviderFacebook    Provider = "Facebook"
	ProviderTwitter     Provider = "Twitter"
	ProviderLinkedIn    Provider = "LinkedIn"
	ProviderInstagram   Provider = "Instagram"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderCredentials, ProviderGoogle, ProviderGitHub, ProviderFacebook,
		ProviderTwitter, ProviderLinkedIn, ProviderInstagram:
		return true
	}
	return false
}

type User struct {
	ID               string
	Email            string
	Username         string
	PasswordHash     string // empty for OAuth-only accounts
	Provider         Provider
	EmailVerified    bool
	ResetToken       string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPassword reports whether the user signs in with a password.
func (u *User) HasPassword() bool {
	return u.Provider == ProviderCredentials && u.PasswordHash != ""
}

// ProfileUpdate carries the user fields that may change after sign-up.
// Nil fields are left as they are.
type ProfileUpdate struct {
	Email         *string
	Username      *string
	EmailVerified *bool
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.Username == nil && u.EmailVerified == nil
}

// ExternalProfile is what an OAuth provider tells us about a user.
type ExternalProfile struct {
	Email       string
	DisplayName string
}
