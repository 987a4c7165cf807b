package dto

type EmailInput struct {
	Email string `json:"email"`
}

type ValidateOTPInput struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}
