// Package client is a Go client for the auth API. It keeps the session in a
// cookie jar and refreshes it transparently when the access token lapses.
package client

import (
	"context"
	"sync"

	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
)

type Event string

const (
	EventSessionExpired Event = "auth:session-expired"
	EventRefreshSuccess Event = "auth:refresh-success"
	EventRefreshFailed  Event = "auth:refresh-failed"
)

// LoginRoute is where an expired session is sent unless it is already on a
// public route.
const LoginRoute = "/auth/login"

// PublicRoutes are app locations that never redirect on session expiry.
var PublicRoutes = []string{
	"/",
	"/auth/login",
	"/auth/register",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/auth/verify-email",
	"/auth/callback",
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RefreshFunc func(ctx context.Context) (*TokenPair, error)

// Navigator exposes the app location so the coordinator can send an
// expired session to the login page.
type Navigator interface {
	Location() string
	Navigate(path string)
}

type refreshCall struct {
	done chan struct{}
	pair *TokenPair
	err  error
}

// Coordinator makes sure at most one refresh runs at a time in the process.
// Callers that arrive while one is running wait for its outcome instead of
// starting their own.
type Coordinator struct {
	mu       sync.Mutex
	inflight *refreshCall
	waiting  int

	// generation counts successful refreshes; last is the newest pair.
	generation uint64
	last       *TokenPair

	log       logging.Logger
	notify    func(Event, error)
	navigator Navigator
	public    map[string]struct{}
}

type CoordinatorOption func(*Coordinator)

func WithNotifier(fn func(Event, error)) CoordinatorOption {
	return func(c *Coordinator) { c.notify = fn }
}

func WithNavigator(n Navigator) CoordinatorOption {
	return func(c *Coordinator) { c.navigator = n }
}

func WithCoordinatorLogger(log logging.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		log:    logging.Nop(),
		notify: func(Event, error) {},
		public: make(map[string]struct{}, len(PublicRoutes)),
	}
	for _, r := range PublicRoutes {
		c.public[r] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation identifies the session state a request is about to use. Pass
// it to RefreshAfter when that request comes back unauthorized.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Refresh runs fn unless a refresh is already in flight, in which case it
// waits for that one. A caller whose ctx ends stops waiting, but the refresh
// itself keeps going on a detached context for everyone else.
func (c *Coordinator) Refresh(ctx context.Context, fn RefreshFunc) (*TokenPair, error) {
	return c.RefreshAfter(ctx, c.Generation(), fn)
}

// RefreshAfter is Refresh for a caller that observed generation seen. If a
// refresh has succeeded since then, the caller's credentials were already
// replaced and the newest pair is returned without running fn.
func (c *Coordinator) RefreshAfter(ctx context.Context, seen uint64, fn RefreshFunc) (*TokenPair, error) {
	c.mu.Lock()
	if c.generation != seen {
		pair := c.last
		c.mu.Unlock()
		return pair, nil
	}
	call := c.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		c.inflight = call
		c.mu.Unlock()
		go c.run(context.WithoutCancel(ctx), call, fn)
	} else {
		c.waiting++
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.waiting--
			c.mu.Unlock()
		}()
	}

	select {
	case <-call.done:
		return call.pair, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Waiting reports how many callers are queued behind the running refresh.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

func (c *Coordinator) run(ctx context.Context, call *refreshCall, fn RefreshFunc) {
	pair, err := fn(ctx)

	if err != nil {
		c.log.Warn(ctx, "session refresh failed", "error", err)
		c.notify(EventRefreshFailed, err)
		c.expire()
	} else {
		c.notify(EventRefreshSuccess, nil)
	}

	c.mu.Lock()
	call.pair, call.err = pair, err
	if err == nil {
		c.generation++
		c.last = pair
	}
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)
}

func (c *Coordinator) expire() {
	c.notify(EventSessionExpired, nil)
	if c.navigator == nil {
		return
	}
	if _, ok := c.public[c.navigator.Location()]; ok {
		return
	}
	c.navigator.Navigate(LoginRoute)
}
