package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
)

const defaultTimeout = 30 * time.Second

// skipRefresh lists API paths whose 401 means "not signed in" rather than
// "access token expired".
var skipRefresh = map[string]struct{}{
	"auth/login":           {},
	"auth/register":        {},
	"auth/refresh":         {},
	"auth/send-otp":        {},
	"auth/resend-otp":      {},
	"auth/validate-otp":    {},
	"auth/reset-password":  {},
	"auth/update-password": {},
	"auth/providers":       {},
}

// APIError is a failed call: a non-2xx status or a body with success:false.
type APIError struct {
	Status      int
	Code        string
	Message     string
	UserMessage string
	Extra       map[string]any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	base  *url.URL
	http  *http.Client
	coord *Coordinator
	log   logging.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithCoordinator(coord *Coordinator) Option {
	return func(c *Client) { c.coord = coord }
}

func WithLogger(log logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client for the API rooted at baseURL, for example
// http://localhost:3000/api/v1/. The session lives in the client's cookie
// jar; an http.Client passed in without a jar gets one.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	c := &Client{base: base, log: logging.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	if c.coord == nil {
		c.coord = NewCoordinator(WithCoordinatorLogger(c.log))
	}
	return c, nil
}

// Do calls the API and decodes the envelope's data into out. A 401 on a
// protected path triggers one coordinated refresh and a single retry. If
// another request already refreshed the session while this one was in
// flight, it only retries.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	path = strings.TrimLeft(path, "/")

	gen := c.coord.Generation()
	err := c.do(ctx, method, path, in, out)
	if !IsUnauthorized(err) {
		return err
	}
	if _, skip := skipRefresh[path]; skip {
		return err
	}

	if _, refreshErr := c.coord.RefreshAfter(ctx, gen, c.refresh); refreshErr != nil {
		return refreshErr
	}
	return c.do(ctx, method, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(&url.URL{Path: path}).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug(ctx, "api request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return decode(resp.StatusCode, raw, out)
}

// decode treats success:false the same as an HTTP error status.
func decode(status int, raw []byte, out any) error {
	var fields map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil && status < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	var success bool
	if v, ok := fields["success"]; ok {
		_ = json.Unmarshal(v, &success)
	} else {
		success = status < 300
	}

	if status >= 300 || !success {
		return apiError(status, fields)
	}

	if out != nil {
		if data, ok := fields["data"]; ok {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode data: %w", err)
			}
		}
	}
	return nil
}

func apiError(status int, fields map[string]json.RawMessage) *APIError {
	e := &APIError{Status: status, Message: http.StatusText(status)}
	for key, v := range fields {
		switch key {
		case "success", "data":
		case "errorCode":
			_ = json.Unmarshal(v, &e.Code)
		case "message":
			_ = json.Unmarshal(v, &e.Message)
		case "userMessage":
			_ = json.Unmarshal(v, &e.UserMessage)
		default:
			var val any
			if json.Unmarshal(v, &val) == nil {
				if e.Extra == nil {
					e.Extra = make(map[string]any)
				}
				e.Extra[key] = val
			}
		}
	}
	return e
}

func (c *Client) refresh(ctx context.Context) (*TokenPair, error) {
	if err := c.do(ctx, http.MethodPost, "auth/refresh", nil, nil); err != nil {
		return nil, err
	}

	pair := &TokenPair{}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		switch ck.Name {
		case "access_token":
			pair.AccessToken = ck.Value
		case "refresh_token":
			pair.RefreshToken = ck.Value
		}
	}
	return pair, nil
}

func (c *Client) Login(ctx context.Context, input dto.LoginInput) error {
	return c.Do(ctx, http.MethodPost, "auth/login", input, nil)
}

func (c *Client) Register(ctx context.Context, input dto.RegisterInput) error {
	return c.Do(ctx, http.MethodPost, "auth/register", input, nil)
}

func (c *Client) Me(ctx context.Context) (*dto.UserOutput, error) {
	var user dto.UserOutput
	if err := c.Do(ctx, http.MethodGet, "auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "auth/logout", nil, nil)
}

func (c *Client) UpdateUser(ctx context.Context, input dto.UpdateUserInput) (*dto.UserOutput, error) {
	var user dto.UserOutput
	if err := c.Do(ctx, http.MethodPut, "auth/update", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, "auth/delete", nil, nil)
}
