package handler

import (
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/oauth"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/service"
	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/gofiber/fiber/v2"
)

// ProviderLookup resolves a provider name from the URL to an enabled provider.
type ProviderLookup interface {
	Get(name string) (oauth.Authenticator, bool)
}

type AuthHandler struct {
	svc       *service.AuthService
	tokens    service.TokenGenerator
	providers ProviderLookup
	log       logging.Logger
	appURL    string
	secure    bool
	otpLength int
}

// Options carries the deployment settings the handlers need.
type Options struct {
	AppURL    string
	// Secure marks every cookie Secure. Set in production.
	Secure    bool
	// OTPLength is the number of digits in mailed codes. Zero means 6.
	OTPLength int
}

func NewAuthHandler(svc *service.AuthService, tokens service.TokenGenerator, providers ProviderLookup,
	log logging.Logger, opts Options) *AuthHandler {
	h := &AuthHandler{
		svc:       svc,
		tokens:    tokens,
		providers: providers,
		log:       log,
		appURL:    trimSlash(opts.AppURL),
		secure:    opts.Secure,
		otpLength: opts.OTPLength,
	}
	if h.otpLength == 0 {
		h.otpLength = defaultOTPLen
	}
	return h
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if err := validateRegister(&input); err != nil {
		return err
	}

	user, err := h.svc.Register(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.Response{
		Success: true,
		Message: "Registration successful. Please verify your email.",
		Data:    fiber.Map{"email": user.Email},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if err := validateLogin(&input); err != nil {
		return err
	}

	pair, err := h.svc.Login(c.UserContext(), input)
	if err != nil {
		return err
	}

	h.setSession(c, pair)
	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "Login successful"})
}

// Refresh trades the refresh_token cookie for a fresh pair. Any failure
// clears both session cookies.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(cookieRefreshToken)
	if refreshToken == "" {
		h.clearSession(c)
		return autherror.ErrInvalidRefreshToken
	}

	pair, err := h.svc.RefreshTokens(c.UserContext(), refreshToken)
	if err != nil {
		h.clearSession(c)
		return err
	}

	h.setSession(c, pair)
	return c.JSON(dto.Response{Success: true, Message: "Token refreshed"})
}

func (h *AuthHandler) SendOtp(c *fiber.Ctx) error {
	input, err := parseEmail(c)
	if err != nil {
		return err
	}
	if err := h.svc.SendOtp(c.UserContext(), input.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "OTP sent"})
}

func (h *AuthHandler) ResendOtp(c *fiber.Ctx) error {
	input, err := parseEmail(c)
	if err != nil {
		return err
	}
	if err := h.svc.ResendOtp(c.UserContext(), input.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "OTP resent"})
}

func (h *AuthHandler) ValidateOtp(c *fiber.Ctx) error {
	var input dto.ValidateOTPInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if err := validateOTP(&input, h.otpLength); err != nil {
		return err
	}

	if err := h.svc.ValidateOtp(c.UserContext(), input.Email, input.Pin); err != nil {
		return err
	}
	return c.JSON(dto.Response{Success: true, Message: "Email verified"})
}

// SendPasswordEmail mails the reset link and hands the same token back as
// the reset_token cookie.
func (h *AuthHandler) SendPasswordEmail(c *fiber.Ctx) error {
	input, err := parseEmail(c)
	if err != nil {
		return err
	}

	token, err := h.svc.SendPasswordEmail(c.UserContext(), input.Email)
	if err != nil {
		return err
	}

	claims, err := h.tokens.VerifyResetToken(token)
	if err != nil {
		return autherror.ErrInternal.Wrap(err)
	}
	h.setCookie(c, cookieResetToken, token, claims.ExpiresAt.Time)

	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "Reset password email sent"})
}

// UpdatePassword sets a new password for a reset-token holder or a signed
// in user, without asking for the current one.
func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return autherror.ErrInvalidToken
	}

	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if err := validatePassword("newPassword", input.NewPassword); err != nil {
		return err
	}

	if err := h.svc.ResetPassword(c.UserContext(), id.UserID, input.NewPassword); err != nil {
		return err
	}

	h.clearCookie(c, cookieResetToken)
	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "Password updated"})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return autherror.ErrInvalidToken
	}

	var input dto.ChangePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if input.Password == "" {
		return validationError("password is required")
	}
	if err := validatePassword("newPassword", input.NewPassword); err != nil {
		return err
	}

	if err := h.svc.UpdatePassword(c.UserContext(), id.UserID, input.Password, input.NewPassword); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Response{Success: true, Message: "Password changed"})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.svc.Logout(c.UserContext(), c.Cookies(cookieRefreshToken))
	h.clearSession(c)
	return c.JSON(dto.Response{Success: true, Message: "Logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return autherror.ErrInvalidToken
	}

	user, err := h.svc.GetUser(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(dto.Response{Success: true, Message: "User fetched", Data: userOutput(user)})
}

// UpdateUser changes the caller's email or username. The session stays
// valid; a changed email has to be verified before the next login.
func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return autherror.ErrInvalidToken
	}

	var input dto.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return errInvalidBody
	}
	if err := validateUpdateUser(&input); err != nil {
		return err
	}

	user, err := h.svc.UpdateUser(c.UserContext(), id.UserID, input)
	if err != nil {
		return err
	}
	return c.JSON(dto.Response{Success: true, Message: "User updated", Data: userOutput(user)})
}

// DeleteUser removes the caller's account and ends the session.
func (h *AuthHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return autherror.ErrInvalidToken
	}

	if err := h.svc.DeleteUser(c.UserContext(), id.UserID); err != nil {
		return err
	}
	h.svc.Logout(c.UserContext(), c.Cookies(cookieRefreshToken))
	h.clearSession(c)
	return c.JSON(dto.Response{Success: true, Message: "User deleted"})
}

func userOutput(user *domain.User) dto.UserOutput {
	return dto.UserOutput{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		Provider:      string(user.Provider),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (h *AuthHandler) Providers(c *fiber.Ctx) error {
	return c.JSON(dto.Response{Success: true, Message: "Providers fetched", Data: h.svc.Providers()})
}

func parseEmail(c *fiber.Ctx) (*dto.EmailInput, error) {
	var input dto.EmailInput
	if err := c.BodyParser(&input); err != nil {
		return nil, errInvalidBody
	}
	if err := validateEmail(&input.Email); err != nil {
		return nil, err
	}
	return &input, nil
}
