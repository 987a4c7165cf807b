package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// IDTokenValidator checks a Google id_token for the given audience.
type IDTokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

func googleProfile(ctx context.Context, p *provider, token *oauth2.Token) (domain.ExternalProfile, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return domain.ExternalProfile{}, ErrNoIDToken
	}
	payload, err := p.validateID(ctx, raw, p.config.ClientID)
	if err != nil {
		return domain.ExternalProfile{}, err
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	return domain.ExternalProfile{Email: email, DisplayName: name}, nil
}

func githubProfile(ctx context.Context, p *provider, token *oauth2.Token) (domain.ExternalProfile, error) {
	client := p.config.Client(ctx, token)

	var user struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		return domain.ExternalProfile{}, err
	}

	profile := domain.ExternalProfile{Email: user.Email, DisplayName: user.Name}
	if profile.DisplayName == "" {
		profile.DisplayName = user.Login
	}
	if profile.Email != "" {
		return profile, nil
	}

	// private emails only show up on the emails endpoint
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, strings.TrimSuffix(p.userInfoURL, "/")+"/emails", &emails); err != nil {
		return domain.ExternalProfile{}, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			profile.Email = e.Email
			break
		}
	}
	return profile, nil
}

// userInfoProfile covers providers whose user endpoint answers with
// top-level name and email fields.
func userInfoProfile(ctx context.Context, p *provider, token *oauth2.Token) (domain.ExternalProfile, error) {
	var user struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := getJSON(ctx, p.config.Client(ctx, token), p.userInfoURL, &user); err != nil {
		return domain.ExternalProfile{}, err
	}
	name := user.Name
	if name == "" {
		name = user.Username
	}
	return domain.ExternalProfile{Email: user.Email, DisplayName: name}, nil
}

// twitterProfile reads the v2 users/me envelope. Twitter does not share
// email addresses over OAuth 2.0, so Email is usually empty.
func twitterProfile(ctx context.Context, p *provider, token *oauth2.Token) (domain.ExternalProfile, error) {
	var body struct {
		Data struct {
			Name     string `json:"name"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"data"`
	}
	if err := getJSON(ctx, p.config.Client(ctx, token), p.userInfoURL, &body); err != nil {
		return domain.ExternalProfile{}, err
	}
	name := body.Data.Name
	if name == "" {
		name = body.Data.Username
	}
	return domain.ExternalProfile{Email: body.Data.Email, DisplayName: name}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
