package oauth

import (
	"strings"

	"github.com/AnthoniusHendriyanto/account-auth/config"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/dto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/idtoken"
)

var twitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

type entry struct {
	kind         domain.Provider
	name         string
	label        string
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	userInfoURL  string
	scopes       []string
	profile      profileFunc
}

// table lists every supported provider in display order.
func table(cfg config.OAuthConfig) []entry {
	return []entry{
		{
			kind: domain.ProviderGoogle, name: "google", label: "Google",
			clientID: cfg.GoogleClientID, clientSecret: cfg.GoogleClientSecret,
			endpoint: endpoints.Google,
			scopes:   []string{"openid", "email", "profile"},
			profile:  googleProfile,
		},
		{
			kind: domain.ProviderGitHub, name: "github", label: "GitHub",
			clientID: cfg.GitHubClientID, clientSecret: cfg.GitHubClientSecret,
			endpoint:    endpoints.GitHub,
			userInfoURL: "https://api.github.com/user",
			scopes:      []string{"read:user", "user:email"},
			profile:     githubProfile,
		},
		{
			kind: domain.ProviderFacebook, name: "facebook", label: "Facebook",
			clientID: cfg.FacebookClientID, clientSecret: cfg.FacebookClientSecret,
			endpoint:    endpoints.Facebook,
			userInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
			scopes:      []string{"email", "public_profile"},
			profile:     userInfoProfile,
		},
		{
			kind: domain.ProviderTwitter, name: "twitter", label: "Twitter",
			clientID: cfg.TwitterConsumerKey, clientSecret: cfg.TwitterConsumerSecret,
			endpoint:    twitterEndpoint,
			userInfoURL: "https://api.twitter.com/2/users/me",
			scopes:      []string{"users.read", "tweet.read"},
			profile:     twitterProfile,
		},
		{
			kind: domain.ProviderLinkedIn, name: "linkedin", label: "LinkedIn",
			clientID: cfg.LinkedInClientID, clientSecret: cfg.LinkedInClientSecret,
			endpoint:    endpoints.LinkedIn,
			userInfoURL: "https://api.linkedin.com/v2/userinfo",
			scopes:      []string{"openid", "profile", "email"},
			profile:     userInfoProfile,
		},
		{
			kind: domain.ProviderInstagram, name: "instagram", label: "Instagram",
			clientID: cfg.InstagramClientID, clientSecret: cfg.InstagramClientSecret,
			endpoint:    endpoints.Instagram,
			userInfoURL: "https://graph.instagram.com/me?fields=id,username",
			scopes:      []string{"user_profile"},
			profile:     userInfoProfile,
		},
	}
}

// Registry holds the providers that have credentials configured.
type Registry struct {
	order     []string
	providers map[string]Authenticator
}

type Option func(*options)

type options struct {
	validateID IDTokenValidator
	overrides  map[domain.Provider]Override
}

// Override replaces a provider's endpoints. Used to point a provider at a
// test server.
type Override struct {
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

func WithIDTokenValidator(v IDTokenValidator) Option {
	return func(o *options) { o.validateID = v }
}

func WithOverride(kind domain.Provider, o Override) Option {
	return func(opts *options) { opts.overrides[kind] = o }
}

// NewRegistry enables every provider whose client id and secret are both
// set. Callbacks go to {publicURL}/api/v1/auth/{name}/callback.
func NewRegistry(cfg config.OAuthConfig, publicURL string, opts ...Option) *Registry {
	o := options{
		validateID: idtoken.Validate,
		overrides:  make(map[domain.Provider]Override),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := strings.TrimRight(publicURL, "/")
	r := &Registry{providers: make(map[string]Authenticator)}
	for _, e := range table(cfg) {
		if e.clientID == "" || e.clientSecret == "" {
			continue
		}
		endpoint, userInfo := e.endpoint, e.userInfoURL
		if ov, ok := o.overrides[e.kind]; ok {
			endpoint, userInfo = ov.Endpoint, ov.UserInfoURL
		}

		r.providers[e.name] = &provider{
			kind:  e.kind,
			name:  e.name,
			label: e.label,
			config: &oauth2.Config{
				ClientID:     e.clientID,
				ClientSecret: e.clientSecret,
				Endpoint:     endpoint,
				RedirectURL:  base + "/api/v1/auth/" + e.name + "/callback",
				Scopes:       e.scopes,
			},
			userInfoURL: userInfo,
			profile:     e.profile,
			validateID:  o.validateID,
		}
		r.order = append(r.order, e.name)
	}
	return r
}

func (r *Registry) Get(name string) (Authenticator, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Providers lists the enabled providers in display order.
func (r *Registry) Providers() []dto.ProviderOutput {
	out := make([]dto.ProviderOutput, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, dto.ProviderOutput{Name: name, Label: r.providers[name].Label()})
	}
	return out
}
