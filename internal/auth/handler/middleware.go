package handler

import (
	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/gofiber/fiber/v2"
)

const localsIdentity = "identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   string
	Username string
}

// IdentityFrom returns the identity stored by RequireAuth or
// RequireResetOrAuth.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(localsIdentity).(Identity)
	return id, ok
}

// RequireAuth accepts only a valid access_token cookie.
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	token := c.Cookies(cookieAccessToken)
	if token == "" {
		return autherror.ErrInvalidToken
	}

	claims, err := h.tokens.VerifyAccessToken(token)
	if err != nil {
		return autherror.ErrInvalidToken
	}

	c.Locals(localsIdentity, Identity{UserID: claims.UserID, Username: claims.Username})
	return c.Next()
}

// RequireResetOrAuth takes the access_token cookie if present, otherwise the
// reset_token cookie. A reset token must also be the one persisted on its
// user and not past its stored expiry.
func (h *AuthHandler) RequireResetOrAuth(c *fiber.Ctx) error {
	if c.Cookies(cookieAccessToken) != "" {
		return h.RequireAuth(c)
	}

	token := c.Cookies(cookieResetToken)
	if token == "" {
		return autherror.ErrInvalidToken
	}

	claims, err := h.svc.VerifyResetToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(localsIdentity, Identity{UserID: claims.UserID, Username: claims.Username})
	return c.Next()
}
