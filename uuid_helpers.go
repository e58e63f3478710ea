package auth

import (
	"strings"

	"github.com/google/uuid"
)

// parseUserID accepts only canonical user ids; anything else can not
// match a stored identity.
func parseUserID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, false
	}
	return parsed, true
}

// HasUserUUID reports whether the claims subject is a user id issued by
// this service.
func HasUserUUID(claims AuthClaims) bool {
	if claims == nil {
		return false
	}
	_, ok := parseUserID(claims.UserID())
	return ok
}
