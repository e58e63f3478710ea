package auth

import (
	"fmt"
	"reflect"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and validates access tokens
type TokenService interface {
	Issue(identity Identity) (*IssuedToken, error)
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// IssuedToken is the signed token and its absolute expiry
type IssuedToken struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	// tokenExpiration is expressed in minutes
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
	now             Clock
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// the token lifetime in minutes.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          normalizeLogger(logger),
		now:             time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (ts *TokenServiceImpl) WithClock(c Clock) *TokenServiceImpl {
	ts.now = normalizeClock(c)
	return ts
}

// TTL returns the configured token lifetime
func (ts *TokenServiceImpl) TTL() time.Duration {
	return time.Duration(ts.tokenExpiration) * time.Minute
}

// Issue builds the claims for identity and signs them
func (ts *TokenServiceImpl) Issue(identity Identity) (*IssuedToken, error) {
	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, errors.New("identity is required", errors.CategoryBadInput)
	}

	claims := ts.newJWTClaims(identity)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		AccessToken: signed,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Generate creates a signed JWT for identity
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	issued, err := ts.Issue(identity)
	if err != nil {
		return "", err
	}
	return issued.AccessToken, nil
}

func (ts *TokenServiceImpl) newJWTClaims(identity Identity) *JWTClaims {
	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	roles := identity.Roles()

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.TTL())),
		},
		EmailAddress: identity.Email(),
		NameID:       identity.ID(),
		DisplayName:  firstNonEmpty(identity.DisplayName(), identity.Email(), identity.ID()),
		SchemaRoles:  append([]string(nil), roles...),
		ShortRoles:   append([]string(nil), roles...),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
