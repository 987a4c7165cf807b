package dto

type ChangePasswordInput struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

type ResetPasswordInput struct {
	NewPassword string `json:"newPassword"`
}
