package dto

type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// TokenResponse is the pair handed to the cookie layer. Extended marks an
// access token issued with the remember-me lifetime.
type TokenResponse struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	Extended     bool   `json:"-"`
}
