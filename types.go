package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an identity that end up in a token.
// Roles must already be resolved by whoever builds the identity.
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
	Roles() []string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*IssuedToken, error)
	Register(ctx context.Context, msg RegisterUserMessage) (*IssuedToken, error)
	ExternalLogin(ctx context.Context, provider, externalToken string) (*IssuedToken, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	// GetTokenExpiration is expressed in minutes.
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetMainAdminEmail() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// ExternalProfile is the normalized result of a provider token verification.
// Subject is the provider's stable account id; Email is used as the key
// when a provider does not return one.
type ExternalProfile struct {
	Subject string
	Email   string
	Name    string
}

// Key returns the value stored as the external login key
func (p ExternalProfile) Key() string {
	if p.Subject != "" {
		return p.Subject
	}
	return normalizeEmail(p.Email)
}

// ExternalVerifier validates a provider issued token. Implementations must
// return an error when the token can not be trusted.
type ExternalVerifier interface {
	Verify(ctx context.Context, provider, token string) (*ExternalProfile, error)
}

// ExternalVerifierFunc adapts a function into an ExternalVerifier.
type ExternalVerifierFunc func(ctx context.Context, provider, token string) (*ExternalProfile, error)

// Verify satisfies ExternalVerifier.
func (f ExternalVerifierFunc) Verify(ctx context.Context, provider, token string) (*ExternalProfile, error) {
	if f == nil {
		return nil, ErrExternalTokenInvalid
	}
	return f(ctx, provider, token)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the printf logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

// Clock returns the current time, overridable in tests.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
