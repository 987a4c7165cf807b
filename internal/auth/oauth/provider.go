// Package oauth holds the static table of social login providers and the
// code exchange that turns a provider callback into an external profile.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"golang.org/x/oauth2"
)

var ErrNoIDToken = errors.New("provider response has no id_token")

// Authenticator is what every enabled provider can do: start the
// authorization redirect and complete it into a profile.
type Authenticator interface {
	Provider() domain.Provider
	Name() string
	Label() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (domain.ExternalProfile, error)
}

type profileFunc func(ctx context.Context, p *provider, token *oauth2.Token) (domain.ExternalProfile, error)

type provider struct {
	kind        domain.Provider
	name        string
	label       string
	config      *oauth2.Config
	userInfoURL string
	profile     profileFunc
	validateID  IDTokenValidator
}

func (p *provider) Provider() domain.Provider { return p.kind }
func (p *provider) Name() string              { return p.name }
func (p *provider) Label() string             { return p.label }

func (p *provider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

func (p *provider) Exchange(ctx context.Context, code, verifier string) (domain.ExternalProfile, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("%s code exchange: %w", p.name, err)
	}
	profile, err := p.profile(ctx, p, token)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("%s profile: %w", p.name, err)
	}
	return profile, nil
}
