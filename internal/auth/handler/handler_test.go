package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/handler"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/oauth"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/repository/memory"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/service"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const appURL = "http://localhost:8081"

var mailedCode = regexp.MustCompile(`>(\d{6})<`)

type mailbox struct {
	mu   sync.Mutex
	html []string
}

func (m *mailbox) Send(_ context.Context, _, _, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.html = append(m.html, html)
	return nil
}

func (m *mailbox) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.html) == 0 {
		return ""
	}
	return m.html[len(m.html)-1]
}

type fakeProvider struct {
	profile domain.ExternalProfile
}

func (p *fakeProvider) Provider() domain.Provider { return domain.ProviderGitHub }
func (p *fakeProvider) Name() string              { return "github" }
func (p *fakeProvider) Label() string             { return "GitHub" }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.test/authorize?state=" + state + "&verifier=" + verifier
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (domain.ExternalProfile, error) {
	if code != "good-code" || verifier == "" {
		return domain.ExternalProfile{}, io.ErrUnexpectedEOF
	}
	return p.profile, nil
}

type fakeProviders map[string]oauth.Authenticator

func (f fakeProviders) Get(name string) (oauth.Authenticator, bool) {
	p, ok := f[name]
	return p, ok
}

func (f fakeProviders) Providers() []dto.ProviderOutput {
	out := []dto.ProviderOutput{}
	for _, p := range f {
		out = append(out, dto.ProviderOutput{Name: p.Name(), Label: p.Label()})
	}
	return out
}

type harness struct {
	app    *fiber.App
	users  *memory.UserStore
	tokens *service.TokenService
	mail   *mailbox
	github *fakeProvider
}

func newHarness(t *testing.T, opts handler.Options) *harness {
	t.Helper()
	h := &harness{
		users:  memory.NewUserStore(),
		mail:   &mailbox{},
		github: &fakeProvider{profile: domain.ExternalProfile{Email: "octo@x.com", DisplayName: "Octo Cat"}},
	}
	h.tokens = service.NewTokenService("access-secret", "refresh-secret", service.TokenExpiry{
		Access:         time.Hour,
		ExtendedAccess: 7 * 24 * time.Hour,
		Refresh:        7 * 24 * time.Hour,
		Reset:          time.Hour,
	})
	providers := fakeProviders{"github": h.github}
	if opts.OTPLength == 0 {
		opts.OTPLength = 6
	}
	otp := service.NewOTPService(memory.NewOTPStore(), h.mail, logging.Nop(), "Account", 5*time.Minute, opts.OTPLength)
	svc := service.NewAuthService(h.users, otp, h.tokens, h.mail, logging.Nop(), "Account", appURL,
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithRevocationStore(memory.NewRevocationStore()),
		service.WithProviderCatalog(providers))

	if opts.AppURL == "" {
		opts.AppURL = appURL
	}
	h.app = fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(logging.Nop())})
	handler.RegisterRoutes(h.app, handler.NewAuthHandler(svc, h.tokens, providers, logging.Nop(), opts))
	return h
}

type result struct {
	status  int
	body    map[string]any
	cookies map[string]*http.Cookie
	header  http.Header
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) result {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	res := result{status: resp.StatusCode, cookies: map[string]*http.Cookie{}, header: resp.Header}
	for _, c := range resp.Cookies() {
		res.cookies[c.Name] = c
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &res.body))
	}
	return res
}

// signUp registers and verifies an account, then logs it in.
func (h *harness) signUp(t *testing.T, username, email, password string, rememberMe bool) result {
	t.Helper()
	res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		dto.RegisterInput{Username: username, Email: email, Password: password})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)

	res = h.do(t, http.MethodPost, "/api/v1/auth/send-otp", dto.EmailInput{Email: email})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)

	m := mailedCode.FindStringSubmatch(h.mail.last())
	require.Len(t, m, 2)
	res = h.do(t, http.MethodPut, "/api/v1/auth/validate-otp", dto.ValidateOTPInput{Email: email, Pin: m[1]})
	require.Equal(t, fiber.StatusOK, res.status, res.body)

	res = h.do(t, http.MethodPost, "/api/v1/auth/login",
		dto.LoginInput{Email: email, Password: password, RememberMe: rememberMe})
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	return res
}

func assertCleared(t *testing.T, res result, names ...string) {
	t.Helper()
	for _, name := range names {
		c, ok := res.cookies[name]
		if assert.True(t, ok, "%s cookie is cleared", name) {
			assert.Empty(t, c.Value)
			assert.True(t, c.Expires.Before(time.Now()), "%s expires in the past", name)
		}
	}
}
