package handler

import (
	"crypto/subtle"
	"net/url"
	"time"

	autherror "github.com/AnthoniusHendriyanto/account-auth/internal/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const oauthCookieTTL = 10 * time.Minute

// OAuthStart redirects the browser to the provider's consent page with a
// fresh state and PKCE verifier kept in short-lived cookies.
func (h *AuthHandler) OAuthStart(c *fiber.Ctx) error {
	p, ok := h.providers.Get(c.Params("provider"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown provider")
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	h.setOAuthCookie(c, cookieOAuthState, state, oauthCookieTTL)
	h.setOAuthCookie(c, cookieOAuthVerifier, verifier, oauthCookieTTL)

	return c.Redirect(p.AuthCodeURL(state, verifier), fiber.StatusFound)
}

// OAuthCallback completes the provider flow, signs the user in and sends
// the browser back to the app. Failures land on the same app page with an
// error code in the query.
func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	state, verifier := c.Cookies(cookieOAuthState), c.Cookies(cookieOAuthVerifier)
	h.clearCookie(c, cookieOAuthState)
	h.clearCookie(c, cookieOAuthVerifier)

	p, ok := h.providers.Get(c.Params("provider"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown provider")
	}

	if c.Query("error") != "" {
		return h.oauthFailed(c, "access_denied")
	}
	if state == "" || verifier == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(c.Query("state"))) != 1 {
		return h.oauthFailed(c, "invalid_state")
	}

	profile, err := p.Exchange(ctx, c.Query("code"), verifier)
	if err != nil {
		h.log.Warn(ctx, "oauth exchange failed", "provider", p.Name(), "error", err)
		return h.oauthFailed(c, "exchange_failed")
	}

	user, err := h.svc.ResolveOAuthUser(ctx, p.Provider(), profile)
	if err != nil {
		return h.oauthFailed(c, autherror.As(err).Code)
	}

	pair, err := h.svc.HandleAuthCallback(ctx, user)
	if err != nil {
		return h.oauthFailed(c, autherror.As(err).Code)
	}

	h.setSession(c, pair)
	return c.Redirect(h.appURL+"/auth/callback", fiber.StatusFound)
}

func (h *AuthHandler) oauthFailed(c *fiber.Ctx, code string) error {
	return c.Redirect(h.appURL+"/auth/callback?error="+url.QueryEscape(code), fiber.StatusFound)
}
