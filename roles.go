package auth

import "strings"

// Role is the canonical, upper-case role name stored for an identity
type Role string

const (
	// RoleAdmin manages identities and roles
	RoleAdmin Role = "ADMIN"
	// RolePublisher produces content
	RolePublisher Role = "PUBLISHER"
	// RoleReader consumes personalized content
	RoleReader Role = "READER"
)

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RolePublisher, RoleReader:
		return true
	default:
		return false
	}
}

// RequiresFavoriteTopics reports whether granting the role needs
// the identity to have at least one favorite topic.
func (r Role) RequiresFavoriteTopics() bool {
	switch r {
	case RolePublisher, RoleReader:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleAdmin,
		RolePublisher,
		RoleReader,
	}
}

// ParseRole accepts any casing and surrounding whitespace and returns
// the canonical role.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleNames converts roles to their wire form, preserving order
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
