package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/newsshelf/shelf-auth/claims"
)

// AuthClaims represents verified JWT claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Name() string
	RoleNames() []string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
//
// Every role is written under both the short and the schema-qualified key so
// that consumers reading either convention see the same set.
type JWTClaims struct {
	jwt.RegisteredClaims
	EmailAddress string   `json:"email,omitempty"`
	DisplayName  string   `json:"name,omitempty"`
	NameID       string   `json:"nameid,omitempty"`
	SchemaRoles  []string `json:"http://schemas.microsoft.com/ws/2008/06/identity/claims/role,omitempty"`
	ShortRoles   []string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.RegisteredClaims.Subject != "" {
		return c.RegisteredClaims.Subject
	}
	return c.NameID
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.EmailAddress
}

// Name returns the display name claim
func (c *JWTClaims) Name() string {
	return c.DisplayName
}

// RoleNames merges both role keys, trimmed and de-duplicated
func (c *JWTClaims) RoleNames() []string {
	return claims.ExtractRoles(jwt.MapClaims{
		claims.KeyRole:       toAnySlice(c.ShortRoles),
		claims.KeyRoleSchema: toAnySlice(c.SchemaRoles),
	})
}

// HasRole checks if the token carries role
func (c *JWTClaims) HasRole(role string) bool {
	return claims.HasAnyRole(c.RoleNames(), []string{role})
}

// HasAnyRole reports whether the token carries one of roles. No roles
// means no restriction.
func (c *JWTClaims) HasAnyRole(roles ...string) bool {
	return claims.HasAnyRole(c.RoleNames(), roles)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func toAnySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
