package claims

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the display identity carried by a token. Fields are empty
// strings when the token does not carry them.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the payload claims of token or nil when the token has fewer
// than two segments, the payload is not base64url or not a JSON object.
// It never verifies the signature and never panics.
func Decode(token string) jwt.MapClaims {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}

	var out jwt.MapClaims
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}

	// "null" unmarshals into a nil map without error
	if out == nil {
		return nil
	}

	return out
}

// ExtractRoles merges the short and schema-qualified role claims. Values are
// trimmed, empty ones dropped and duplicates removed case-sensitively, keeping
// first-seen order.
func ExtractRoles(c jwt.MapClaims) []string {
	roles := []string{}
	if c == nil {
		return roles
	}

	seen := map[string]bool{}
	for _, key := range RoleKeys {
		for _, role := range toStrings(c[key]) {
			role = strings.TrimSpace(role)
			if role == "" || seen[role] {
				continue
			}
			seen[role] = true
			roles = append(roles, role)
		}
	}

	return roles
}

// ExtractIdentity resolves id, email and name using the alias tables.
func ExtractIdentity(c jwt.MapClaims) Identity {
	if c == nil {
		return Identity{}
	}

	return Identity{
		ID:    firstString(c, IDKeys),
		Email: firstString(c, EmailKeys),
		Name:  firstString(c, NameKeys),
	}
}

// HasAnyRole reports whether roles intersects allowed. An empty allowed list
// marks an unrestricted route and always returns true.
func HasAnyRole(roles []string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}

	for _, a := range allowed {
		if _, ok := set[a]; ok {
			return true
		}
	}

	return false
}

// RolesFromToken is Decode followed by ExtractRoles.
func RolesFromToken(token string) []string {
	return ExtractRoles(Decode(token))
}

// IdentityFromToken is Decode followed by ExtractIdentity.
func IdentityFromToken(token string) Identity {
	return ExtractIdentity(Decode(token))
}

func firstString(c jwt.MapClaims, keys []string) string {
	for _, key := range keys {
		v, ok := c[key]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(val)}
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		// json numbers decode to float64; integral ids print without exponent
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
