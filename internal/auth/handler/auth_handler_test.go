package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/handler"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/service"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/AnthoniusHendriyanto/account-auth/internal/mocks"
	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	h := newHarness(t, handler.Options{})

	t.Run("success", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/register",
			dto.RegisterInput{Username: "alice", Email: "Alice@X.com ", Password: "Passw0rd!"})
		require.Equal(t, fiber.StatusCreated, res.status)
		assert.Equal(t, true, res.body["success"])
		assert.Equal(t, map[string]any{"email": "alice@x.com"}, res.body["data"])
		assert.Empty(t, res.cookies, "registration does not sign in")
	})

	t.Run("unverified email redirects to otp", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/register",
			dto.RegisterInput{Username: "alice2", Email: "alice@x.com", Password: "Passw0rd!"})
		assert.Equal(t, fiber.StatusConflict, res.status)
		assert.Equal(t, "AUTH_001", res.body["errorCode"])
		assert.Equal(t, true, res.body["otpRedirect"])
		assert.Equal(t, "alice@x.com", res.body["email"])
	})

	t.Run("username taken", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/register",
			dto.RegisterInput{Username: "alice", Email: "other@x.com", Password: "Passw0rd!"})
		assert.Equal(t, fiber.StatusConflict, res.status)
		assert.Equal(t, "AUTH_002", res.body["errorCode"])
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			input dto.RegisterInput
		}{
			{"short username", dto.RegisterInput{Username: "al", Email: "a@x.com", Password: "Passw0rd!"}},
			{"bad email", dto.RegisterInput{Username: "alex", Email: "not-an-email", Password: "Passw0rd!"}},
			{"short password", dto.RegisterInput{Username: "alex", Email: "a@x.com", Password: "short"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := h.do(t, http.MethodPost, "/api/v1/auth/register", tt.input)
				assert.Equal(t, fiber.StatusBadRequest, res.status)
				assert.Equal(t, false, res.body["success"])
				assert.Equal(t, "VALIDATION_ERROR", res.body["errorCode"])
			})
		}
	})

	t.Run("bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
		req.Header.Set("Content-Type", "application/json")
		resp, err := h.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	h := newHarness(t, handler.Options{})

	res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		dto.RegisterInput{Username: "bob", Email: "bob@x.com", Password: "Passw0rd!"})
	require.Equal(t, fiber.StatusCreated, res.status)

	t.Run("unverified", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "bob@x.com", Password: "Passw0rd!"})
		assert.Equal(t, fiber.StatusForbidden, res.status)
		assert.Equal(t, "AUTH_006", res.body["errorCode"])
		assert.Equal(t, true, res.body["otpRedirect"])
		assert.Equal(t, "bob@x.com", res.body["email"])
		assert.NotContains(t, res.cookies, "access_token")
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "bob@x.com", Password: "nope-nope"})
		unknown := h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "ghost@x.com", Password: "nope-nope"})
		assert.Equal(t, fiber.StatusUnauthorized, wrong.status)
		assert.Equal(t, wrong.status, unknown.status)
		assert.Equal(t, wrong.body, unknown.body)
	})
}

func TestLogin_SetsSessionCookies(t *testing.T) {
	h := newHarness(t, handler.Options{})
	res := h.signUp(t, "carol", "carol@x.com", "Passw0rd!", false)

	access, refresh := res.cookies["access_token"], res.cookies["refresh_token"]
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
		assert.False(t, c.Secure)
	}
	assert.InDelta(t, time.Hour.Seconds(), access.MaxAge, 2)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), refresh.MaxAge, 2)

	claims, err := h.tokens.VerifyAccessToken(access.Value)
	require.NoError(t, err)
	assert.Equal(t, "carol", claims.Username)
}

func TestLogin_RememberMeExtendsAccessCookie(t *testing.T) {
	h := newHarness(t, handler.Options{Secure: true})
	res := h.signUp(t, "dan", "dan@x.com", "Passw0rd!", true)

	access := res.cookies["access_token"]
	require.NotNil(t, access)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), access.MaxAge, 2)
	assert.True(t, access.Secure)
}

func TestValidateOtp(t *testing.T) {
	h := newHarness(t, handler.Options{})
	res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		dto.RegisterInput{Username: "erin", Email: "erin@x.com", Password: "Passw0rd!"})
	require.Equal(t, fiber.StatusCreated, res.status)

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "erin@x.com", Pin: "12ab56"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_ERROR", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "ghost@x.com", Pin: "123456"})
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "USER_001", res.body["errorCode"])

	require.Equal(t, fiber.StatusCreated, h.do(t, http.MethodPost, "/api/v1/auth/send-otp", dto.EmailInput{Email: "erin@x.com"}).status)
	require.Equal(t, fiber.StatusCreated, h.do(t, http.MethodPost, "/api/v1/auth/resend-otp", dto.EmailInput{Email: "erin@x.com"}).status)
	code := mailedCode.FindStringSubmatch(h.mail.last())[1]

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "erin@x.com", Pin: code})
	require.Equal(t, fiber.StatusOK, res.status)

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "erin@x.com", Pin: code})
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "OTP_001", res.body["errorCode"])

	res = h.do(t, http.MethodPost, "/api/v1/auth/send-otp", dto.EmailInput{Email: "erin@x.com"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "AUTH_007", res.body["errorCode"])
}

func TestMe(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "fay", "fay@x.com", "Passw0rd!", false)

	res := h.do(t, http.MethodGet, "/api/v1/auth/me", nil, session.cookies["access_token"])
	require.Equal(t, fiber.StatusOK, res.status)
	data := res.body["data"].(map[string]any)
	assert.Equal(t, "fay@x.com", data["email"])
	assert.Equal(t, "Credentials", data["provider"])
	assert.Equal(t, true, data["emailVerified"])
	assert.NotContains(t, data, "passwordHash")

	t.Run("no cookie", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/auth/me", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.status)
		assert.Equal(t, "JWT_001", res.body["errorCode"])
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		res := h.do(t, http.MethodGet, "/api/v1/auth/me", nil,
			&http.Cookie{Name: "access_token", Value: session.cookies["refresh_token"].Value})
		assert.Equal(t, fiber.StatusUnauthorized, res.status)
	})
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "gus", "gus@x.com", "Passw0rd!", true)
	refresh := session.cookies["refresh_token"]

	t.Run("missing cookie clears session", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/refresh", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.status)
		assert.Equal(t, "JWT_002", res.body["errorCode"])
		assertCleared(t, res, "access_token", "refresh_token")
	})

	t.Run("issues a normal-lifetime pair", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
		require.Equal(t, fiber.StatusOK, res.status)
		require.NotNil(t, res.cookies["access_token"])
		assert.InDelta(t, time.Hour.Seconds(), res.cookies["access_token"].MaxAge, 2)
		assert.NotEmpty(t, res.cookies["refresh_token"].Value)
	})

	t.Run("garbage token clears session", func(t *testing.T) {
		res := h.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, &http.Cookie{Name: "refresh_token", Value: "garbage"})
		assert.Equal(t, fiber.StatusUnauthorized, res.status)
		assertCleared(t, res, "access_token", "refresh_token")
	})
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "hal", "hal@x.com", "Passw0rd!", false)

	res := h.do(t, http.MethodPost, "/api/v1/auth/logout", nil,
		session.cookies["access_token"], session.cookies["refresh_token"])
	require.Equal(t, fiber.StatusOK, res.status)
	assertCleared(t, res, "access_token", "refresh_token")

	res = h.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, session.cookies["refresh_token"])
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res = h.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status, "logout requires a session")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "ivy", "ivy@x.com", "OldPass1!", false)
	access := session.cookies["access_token"]

	res := h.do(t, http.MethodPut, "/api/v1/auth/change-password",
		dto.ChangePasswordInput{Password: "OldPass1!", NewPassword: "NewPass1!"})
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res = h.do(t, http.MethodPut, "/api/v1/auth/change-password",
		dto.ChangePasswordInput{Password: "WrongPass", NewPassword: "NewPass1!"}, access)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "AUTH_004", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/change-password",
		dto.ChangePasswordInput{Password: "OldPass1!", NewPassword: "OldPass1!"}, access)
	assert.Equal(t, "AUTH_005", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/change-password",
		dto.ChangePasswordInput{Password: "OldPass1!", NewPassword: "NewPass1!"}, access)
	require.Equal(t, fiber.StatusCreated, res.status)

	res = h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "ivy@x.com", Password: "NewPass1!"})
	assert.Equal(t, fiber.StatusCreated, res.status)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t, handler.Options{})
	res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		dto.RegisterInput{Username: "jay", Email: "jay@x.com", Password: "OldPass1!"})
	require.Equal(t, fiber.StatusCreated, res.status)

	res = h.do(t, http.MethodPost, "/api/v1/auth/reset-password", dto.EmailInput{Email: "jay@x.com"})
	require.Equal(t, fiber.StatusCreated, res.status)
	reset := res.cookies["reset_token"]
	require.NotNil(t, reset)
	assert.True(t, reset.HttpOnly)
	assert.InDelta(t, time.Hour.Seconds(), reset.MaxAge, 2)
	assert.Contains(t, h.mail.last(), appURL+"/reset-password")

	res = h.do(t, http.MethodPut, "/api/v1/auth/update-password", dto.ResetPasswordInput{NewPassword: "OldPass1!"}, reset)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "AUTH_005", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update-password", dto.ResetPasswordInput{NewPassword: "NewPass1!"}, reset)
	require.Equal(t, fiber.StatusCreated, res.status)
	assertCleared(t, res, "reset_token")

	res = h.do(t, http.MethodPut, "/api/v1/auth/update-password", dto.ResetPasswordInput{NewPassword: "Another1!"}, reset)
	assert.Equal(t, fiber.StatusUnauthorized, res.status, "a reset token works once")

	res = h.do(t, http.MethodPost, "/api/v1/auth/reset-password", dto.EmailInput{Email: "ghost@x.com"})
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestResetToken_DoesNotOpenSession(t *testing.T) {
	h := newHarness(t, handler.Options{})
	h.signUp(t, "vic", "victim@x.com", "Passw0rd!", false)

	res := h.do(t, http.MethodPost, "/api/v1/auth/reset-password", dto.EmailInput{Email: "victim@x.com"})
	require.Equal(t, fiber.StatusCreated, res.status)
	reset := res.cookies["reset_token"]
	require.NotNil(t, reset)

	asAccess := &http.Cookie{Name: "access_token", Value: reset.Value}
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPut, "/api/v1/auth/change-password"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodDelete, "/api/v1/auth/delete"},
		{http.MethodPut, "/api/v1/auth/update-password"},
	} {
		res := h.do(t, tc.method, tc.path, dto.ResetPasswordInput{NewPassword: "NewPass1!"}, asAccess)
		assert.Equal(t, fiber.StatusUnauthorized, res.status, tc.path)
		assert.Equal(t, "JWT_001", res.body["errorCode"], tc.path)
	}
}

func TestValidateOtp_ConfiguredLength(t *testing.T) {
	h := newHarness(t, handler.Options{OTPLength: 8})
	res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		dto.RegisterInput{Username: "otto", Email: "otto@x.com", Password: "Passw0rd!"})
	require.Equal(t, fiber.StatusCreated, res.status)
	require.Equal(t, fiber.StatusCreated, h.do(t, http.MethodPost, "/api/v1/auth/send-otp", dto.EmailInput{Email: "otto@x.com"}).status)

	m := regexp.MustCompile(`>(\d{8})<`).FindStringSubmatch(h.mail.last())
	require.Len(t, m, 2)

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "otto@x.com", Pin: m[1][:6]})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "pin must be 8 digits", res.body["message"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: "otto@x.com", Pin: m[1]})
	assert.Equal(t, fiber.StatusOK, res.status)
}

func TestUpdateUser(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "uma", "uma@x.com", "Passw0rd!", false)
	h.signUp(t, "taken", "taken@x.com", "Passw0rd!", false)
	access := session.cookies["access_token"]

	res := h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]any{}, access)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "USER_002", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]string{"username": "ab"}, access)
	assert.Equal(t, "VALIDATION_ERROR", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]string{"username": "taken"}, access)
	assert.Equal(t, fiber.StatusConflict, res.status)
	assert.Equal(t, "AUTH_002", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]string{"email": "Taken@X.com"}, access)
	assert.Equal(t, fiber.StatusConflict, res.status)
	assert.Equal(t, "AUTH_001", res.body["errorCode"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]string{"username": "uma2"}, access)
	require.Equal(t, fiber.StatusOK, res.status, res.body)
	data := res.body["data"].(map[string]any)
	assert.Equal(t, "uma2", data["username"])
	assert.Equal(t, true, data["emailVerified"])

	res = h.do(t, http.MethodPut, "/api/v1/auth/update", map[string]string{"email": "uma.new@x.com"}, access)
	require.Equal(t, fiber.StatusOK, res.status, res.body)
	data = res.body["data"].(map[string]any)
	assert.Equal(t, "uma.new@x.com", data["email"])
	assert.Equal(t, false, data["emailVerified"])

	res = h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "uma.new@x.com", Password: "Passw0rd!"})
	assert.Equal(t, fiber.StatusForbidden, res.status)
	assert.Equal(t, "AUTH_006", res.body["errorCode"], "new email needs verifying")
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "del", "del@x.com", "Passw0rd!", false)

	res := h.do(t, http.MethodDelete, "/api/v1/auth/delete", nil, session.cookies["access_token"], session.cookies["refresh_token"])
	require.Equal(t, fiber.StatusOK, res.status, res.body)
	assertCleared(t, res, "access_token", "refresh_token")

	user, err := h.users.GetByEmail(context.Background(), "del@x.com")
	require.NoError(t, err)
	assert.Nil(t, user)

	res = h.do(t, http.MethodDelete, "/api/v1/auth/delete", nil, session.cookies["access_token"])
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "USER_001", res.body["errorCode"])

	res = h.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, session.cookies["refresh_token"])
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestUpdatePassword_WithAccessToken(t *testing.T) {
	h := newHarness(t, handler.Options{})
	session := h.signUp(t, "kim", "kim@x.com", "OldPass1!", false)

	res := h.do(t, http.MethodPut, "/api/v1/auth/update-password",
		dto.ResetPasswordInput{NewPassword: "NewPass1!"}, session.cookies["access_token"])
	require.Equal(t, fiber.StatusCreated, res.status)

	res = h.do(t, http.MethodPut, "/api/v1/auth/update-password", dto.ResetPasswordInput{NewPassword: "NewPass1!"})
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	tokens := service.NewTokenService("a", "r", service.TokenExpiry{Access: time.Hour, Refresh: time.Hour, Reset: time.Hour})
	svc := service.NewAuthService(users, mocks.NewMockOTPSender(ctrl), tokens, mocks.NewMockMailer(ctrl),
		logging.Nop(), "Account", appURL)

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(logging.Nop())})
	handler.RegisterRoutes(app, handler.NewAuthHandler(svc, tokens, fakeProviders{}, logging.Nop(), handler.Options{AppURL: appURL}))
	h := &harness{app: app}

	users.EXPECT().GetByEmail(gomock.Any(), "lee@x.com").Return(nil, errors.New("connection refused"))

	res := h.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginInput{Email: "lee@x.com", Password: "Passw0rd!"})
	assert.Equal(t, fiber.StatusInternalServerError, res.status)
	assert.Equal(t, map[string]any{
		"success":     false,
		"errorCode":   "UNKNOWN",
		"message":     "Unknown server error",
		"userMessage": "Something went wrong. Please try again later.",
	}, res.body)
}

func TestIdentityFrom(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, ok := handler.IdentityFrom(c)
		assert.False(t, ok)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
