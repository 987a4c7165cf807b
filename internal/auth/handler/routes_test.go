package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterRoutes verifies that every route is mounted.
func TestRegisterRoutes(t *testing.T) {
	h := newHarness(t, handler.Options{})

	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/auth/login"},
		{http.MethodPost, "/api/v1/auth/register"},
		{http.MethodPost, "/api/v1/auth/refresh"},
		{http.MethodPost, "/api/v1/auth/send-otp"},
		{http.MethodPost, "/api/v1/auth/resend-otp"},
		{http.MethodPut, "/api/v1/auth/validate-otp"},
		{http.MethodPost, "/api/v1/auth/reset-password"},
		{http.MethodPut, "/api/v1/auth/update-password"},
		{http.MethodPut, "/api/v1/auth/change-password"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPut, "/api/v1/auth/update"},
		{http.MethodDelete, "/api/v1/auth/delete"},
		{http.MethodGet, "/api/v1/auth/providers"},
		{http.MethodGet, "/api/v1/auth/github"},
		{http.MethodGet, "/api/v1/auth/github/callback"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s_%s_exists", tc.method, tc.path), func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			resp, err := h.app.Test(req, -1)
			require.NoError(t, err)

			// handlers answer 400/401/302 without a body or session; only the
			// router answers 404 or 405
			assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
			assert.NotEqual(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	h := newHarness(t, handler.Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/api/v1/auth/change-password"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPut, "/api/v1/auth/update"},
		{http.MethodDelete, "/api/v1/auth/delete"},
		{http.MethodPut, "/api/v1/auth/update-password"},
	} {
		res := h.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, res.status, tc.path)
		assert.Equal(t, "JWT_001", res.body["errorCode"], tc.path)
	}
}
