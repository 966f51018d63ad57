// Package oidc provides OIDC/OAuth2 federated sign-in for the auth status engine.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

const (
	wellKnownSuffix = "/.well-known/openid-configuration"
	randomBytes     = 32
)

// Provider runs the authorization-code flow with PKCE against one OIDC identity provider.
type Provider struct {
	id         string
	config     *oauth2.Config
	httpClient *http.Client
	op         *gooidc.Provider
	verifier   *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	// ID is the provider identifier callers name in ProviderRef, e.g. "google".
	ID           string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scope is space separated. Sign-in without "openid" relies on the userinfo endpoint alone.
	Scope string
	// DiscoveryURL is the issuer, with or without the well-known suffix.
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// Authorization is a started sign-in: where to send the user and what the callback must match.
type Authorization struct {
	URL   string
	State string
	Nonce string
	// Verifier is the PKCE code verifier presented at token exchange.
	Verifier string
}

// NewProvider fetches the discovery document and builds a provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	switch {
	case cfg.ID == "":
		return nil, errors.New("provider ID is required")
	case cfg.ClientID == "":
		return nil, errors.New("client ID is required")
	case cfg.ClientSecret == "":
		return nil, errors.New("client secret is required")
	case cfg.RedirectURL == "":
		return nil, errors.New("redirect URL is required")
	case cfg.DiscoveryURL == "":
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := gooidc.ClientContext(context.Background(), httpClient)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscovery(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		id:         cfg.ID,
		httpClient: httpClient,
		op:         op,
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// ID returns the provider identifier.
func (p *Provider) ID() string { return p.id }

// Begin starts a sign-in and returns the authorization URL with fresh state, nonce and PKCE
// verifier. Scopes requested in ref are added to the configured ones.
func (p *Provider) Begin(ref domainauth.ProviderRef) (Authorization, error) {
	state, err := randomToken()
	if err != nil {
		return Authorization{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return Authorization{}, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	cfg := *p.config
	cfg.Scopes = mergeScopes(p.config.Scopes, ref.Scopes)

	return Authorization{
		URL: cfg.AuthCodeURL(state,
			gooidc.Nonce(nonce),
			oauth2.S256ChallengeOption(verifier),
			oauth2.SetAuthURLParam("prompt", "select_account"),
		),
		State:    state,
		Nonce:    nonce,
		Verifier: verifier,
	}, nil
}

// Exchange trades the callback's authorization code for the signed-in identity and its
// credential, checking the ID token against the nonce sent with auth.
func (p *Provider) Exchange(ctx context.Context, code string, auth Authorization) (domainauth.UserCredential, error) {
	if code == "" {
		return domainauth.UserCredential{}, errors.New("authorization code is required")
	}
	if auth.Nonce == "" {
		return domainauth.UserCredential{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	var opts []oauth2.AuthCodeOption
	if auth.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(auth.Verifier))
	}
	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		return domainauth.UserCredential{}, fmt.Errorf("exchange code for token: %w", err)
	}

	var (
		c     claims
		rawID string
	)
	if p.requestsOpenID() {
		c, rawID, err = p.verifyIDToken(ctx, token, auth.Nonce)
		if err != nil {
			return domainauth.UserCredential{}, err
		}
	}
	if c.Subject == "" || c.Email == "" {
		ui, uiErr := p.userInfo(ctx, token)
		if uiErr != nil {
			return domainauth.UserCredential{}, uiErr
		}
		c = c.fill(ui)
	}
	if c.Subject == "" {
		return domainauth.UserCredential{}, errors.New("identity provider returned no subject")
	}

	return domainauth.UserCredential{
		Identity: &domainauth.Identity{
			UID:         p.id + ":" + c.Subject,
			Email:       c.Email,
			DisplayName: c.displayName(),
			ProviderID:  p.id,
		},
		Credential: &domainauth.Credential{
			ProviderID:  p.id,
			AccessToken: token.AccessToken,
			IDToken:     rawID,
		},
	}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, token *oauth2.Token, nonce string) (claims, string, error) {
	rawID, err := idTokenFrom(token)
	if err != nil {
		return claims{}, "", err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return claims{}, "", fmt.Errorf("verify id_token: %w", err)
	}
	var c claims
	if err := idTok.Claims(&c); err != nil {
		return claims{}, "", fmt.Errorf("parse id_token claims: %w", err)
	}
	if c.Nonce != nonce {
		return claims{}, "", errors.New("id_token nonce mismatch")
	}
	return c, rawID, nil
}

func (p *Provider) userInfo(ctx context.Context, token *oauth2.Token) (claims, error) {
	ui, err := p.op.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return claims{}, fmt.Errorf("fetch user info: %w", err)
	}
	var c claims
	if err := ui.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("decode user info: %w", err)
	}
	return c, nil
}

func (p *Provider) requestsOpenID() bool {
	return slices.Contains(p.config.Scopes, gooidc.ScopeOpenID)
}

// claims holds the standard OIDC claims an identity is built from. ID tokens and the
// userinfo endpoint share the shape.
type claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Nonce      string `json:"nonce"`
}

// fill copies fields from other that c lacks. Fields c already has win.
func (c claims) fill(other claims) claims {
	c.Subject = cmpOr(c.Subject, other.Subject)
	c.Email = cmpOr(c.Email, other.Email)
	c.Name = cmpOr(c.Name, other.Name)
	c.GivenName = cmpOr(c.GivenName, other.GivenName)
	c.FamilyName = cmpOr(c.FamilyName, other.FamilyName)
	return c
}

func (c claims) displayName() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func idTokenFrom(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

// issuerFromDiscovery accepts either the issuer or its discovery document URL.
func issuerFromDiscovery(discoveryURL string) string {
	issuer := strings.TrimSuffix(strings.TrimSpace(discoveryURL), "/")
	return strings.TrimSuffix(issuer, wellKnownSuffix)
}

func mergeScopes(base, extra []string) []string {
	out := slices.Clone(base)
	for _, sc := range extra {
		sc = strings.TrimSpace(sc)
		if sc != "" && !slices.Contains(out, sc) {
			out = append(out, sc)
		}
	}
	return out
}

// randomToken returns 32 random bytes, base64url encoded without padding.
func randomToken() (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
