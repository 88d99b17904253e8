package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/internal/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	GoogleIssuer    = "https://accounts.google.com"
	GoogleKeysURL   = "https://www.googleapis.com/oauth2/v3/certs"
	FacebookMeURL   = "https://graph.facebook.com/me?fields=id,name"
	maxProfileBytes = 1 << 20
)

// NewGoogle configures the Google strategy. The profile comes from the
// id_token returned with the access token, verified against Google keys.
func NewGoogle(ctx context.Context, client config.OAuthClient, store *accounts.Store) (*FederatedStrategy, error) {
	keys := oidc.NewRemoteKeySet(ctx, GoogleKeysURL)
	verifier := oidc.NewVerifier(GoogleIssuer, keys, &oidc.Config{ClientID: client.ClientID})
	return NewFederated(Google, oauthConfig(client, endpoints.Google, []string{oidc.ScopeOpenID, "profile"}), GoogleProfile(verifier), store)
}

// NewFacebook configures the Facebook strategy, the profile is read from
// the Graph API.
func NewFacebook(client config.OAuthClient, store *accounts.Store) (*FederatedStrategy, error) {
	cfg := oauthConfig(client, endpoints.Facebook, []string{"public_profile"})
	return NewFederated(Facebook, cfg, FacebookProfile(cfg, FacebookMeURL), store)
}

func oauthConfig(client config.OAuthClient, endpoint oauth2.Endpoint, scopes []string) *oauth2.Config {
	if len(client.Scopes) > 0 {
		scopes = client.Scopes
	}
	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  client.CallbackURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// GoogleProfile reads the subject and the name out of a verified id_token.
func GoogleProfile(verifier *oidc.IDTokenVerifier) ProfileFunc {
	return func(ctx context.Context, tok *oauth2.Token) (Profile, error) {
		raw, ok := tok.Extra("id_token").(string)
		if !ok || raw == "" {
			return Profile{}, fmt.Errorf("%w: missing id_token", ErrProvider)
		}
		idToken, err := verifier.Verify(ctx, raw)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: invalid id_token, cause %v", ErrProvider, err)
		}
		var claims struct {
			Name string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return Profile{}, fmt.Errorf("%w: unable to read id_token claims, cause %v", ErrProvider, err)
		}
		return Profile{ID: idToken.Subject, DisplayName: claims.Name}, nil
	}
}

// FacebookProfile calls meURL with a client authorized by tok.
func FacebookProfile(cfg *oauth2.Config, meURL string) ProfileFunc {
	return func(ctx context.Context, tok *oauth2.Token) (Profile, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, meURL, nil)
		if err != nil {
			return Profile{}, err
		}
		res, err := cfg.Client(ctx, tok).Do(req)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: unable to call graph api, cause %v", ErrProvider, err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return Profile{}, fmt.Errorf("%w: graph api answered with %v", ErrProvider, res.Status)
		}
		var me struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(io.LimitReader(res.Body, maxProfileBytes)).Decode(&me); err != nil {
			return Profile{}, fmt.Errorf("%w: unable to decode graph api profile, cause %v", ErrProvider, err)
		}
		return Profile{ID: me.ID, DisplayName: me.Name}, nil
	}
}
