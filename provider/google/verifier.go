// Package google verifies Google ID tokens for external login.
package google

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	auth "github.com/newsshelf/shelf-auth"
)

// ProviderName is the provider value clients send for Google
const ProviderName = "google"

// DefaultIssuer is Google's OpenID issuer
const DefaultIssuer = "https://accounts.google.com"

var (
	ErrUnsupportedProvider = errors.New("google: unsupported provider")
	ErrEmailNotVerified    = errors.New("google: email is not verified")
	ErrMissingIDToken      = errors.New("google: missing id_token in token response")
)

type Config struct {
	ClientID string
	Issuer   string
	// ClientSecret and RedirectURL are only needed for the code exchange
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HTTPClient   *http.Client
	// AllowUnverifiedEmail accepts tokens whose email_verified claim is false
	AllowUnverifiedEmail bool
}

func (c Config) issuer() string {
	if c.Issuer == "" {
		return DefaultIssuer
	}
	return strings.TrimSuffix(c.Issuer, "/")
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return c.Scopes
}

// Verifier implements auth.ExternalVerifier for Google ID tokens
type Verifier struct {
	cfg      Config
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
	client   *http.Client
}

var _ auth.ExternalVerifier = (*Verifier)(nil)

// NewVerifier runs OIDC discovery against the issuer once and keeps the
// remote key set for later verifications.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: client ID is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = oidc.ClientContext(ctx, client)
	provider, err := oidc.NewProvider(ctx, cfg.issuer())
	if err != nil {
		return nil, fmt.Errorf("google: oidc discovery: %w", err)
	}

	return &Verifier{
		cfg:      cfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.scopes(),
			Endpoint:     provider.Endpoint(),
		},
		client: client,
	}, nil
}

// NewStaticVerifier verifies against fixed public keys without discovery
func NewStaticVerifier(cfg Config, keys ...crypto.PublicKey) *Verifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{
		cfg:      cfg,
		verifier: oidc.NewVerifier(cfg.issuer(), keySet, &oidc.Config{ClientID: cfg.ClientID}),
		client:   cfg.HTTPClient,
	}
}

type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// Verify checks signature, issuer, audience and expiry of an ID token
func (v *Verifier) Verify(ctx context.Context, provider, token string) (*auth.ExternalProfile, error) {
	if !strings.EqualFold(strings.TrimSpace(provider), ProviderName) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}

	if v.client != nil {
		ctx = oidc.ClientContext(ctx, v.client)
	}

	idToken, err := v.verifier.Verify(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("google: verify id token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google: decode claims: %w", err)
	}

	if claims.EmailVerified != nil && !*claims.EmailVerified && !v.cfg.AllowUnverifiedEmail {
		return nil, ErrEmailNotVerified
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	return &auth.ExternalProfile{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    name,
	}, nil
}

// AuthCodeURL builds the consent URL for the authorization code flow
func (v *Verifier) AuthCodeURL(state, nonce string) (string, error) {
	if v.oauth == nil || v.cfg.RedirectURL == "" {
		return "", errors.New("google: code flow is not configured")
	}
	return v.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// Exchange trades an authorization code for the raw ID token, which can
// then be handed to ExternalLogin.
func (v *Verifier) Exchange(ctx context.Context, code string) (string, error) {
	if v.oauth == nil {
		return "", errors.New("google: code flow is not configured")
	}
	if code == "" {
		return "", errors.New("google: authorization code is required")
	}

	if v.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	}

	tok, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("google: exchange code: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", ErrMissingIDToken
	}
	return raw, nil
}

// Registry dispatches to a verifier per provider name
type Registry map[string]auth.ExternalVerifier

var _ auth.ExternalVerifier = Registry{}

func (r Registry) Verify(ctx context.Context, provider, token string) (*auth.ExternalProfile, error) {
	v, ok := r[strings.ToLower(strings.TrimSpace(provider))]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	return v.Verify(ctx, provider, token)
}
