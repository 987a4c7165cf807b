package dto

import (
	"time"
)

type UserOutput struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Provider      string    `json:"provider"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UpdateUserInput is a partial profile update. Passwords change through
// the password endpoints only.
type UpdateUserInput struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
}

type ProviderOutput struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}
