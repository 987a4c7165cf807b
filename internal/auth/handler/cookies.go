package handler

import (
	"strings"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/gofiber/fiber/v2"
)

const (
	cookieAccessToken   = "access_token"
	cookieRefreshToken  = "refresh_token"
	cookieResetToken    = "reset_token"
	cookieOAuthState    = "oauth_state"
	cookieOAuthVerifier = "oauth_verifier"
)

func (h *AuthHandler) setSession(c *fiber.Ctx, pair *dto.TokenResponse) {
	now := time.Now()
	h.setCookie(c, cookieAccessToken, pair.AccessToken, now.Add(h.tokens.GetAccessTokenExpiry(pair.Extended)))
	h.setCookie(c, cookieRefreshToken, pair.RefreshToken, now.Add(h.tokens.GetRefreshTokenExpiry()))
}

func (h *AuthHandler) clearSession(c *fiber.Ctx) {
	h.clearCookie(c, cookieAccessToken)
	h.clearCookie(c, cookieRefreshToken)
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// setOAuthCookie uses SameSite=Lax: the provider sends the browser back with
// a cross-site top-level navigation and Strict cookies would be withheld.
func (h *AuthHandler) setOAuthCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}
