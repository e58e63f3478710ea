// Package claims reads identity and role facts out of a token payload
// without verifying it.
//
// Everything here is display-only and is not a trust boundary. A decoded
// role decides which navigation a client offers, never what the server
// allows: the server re-checks signature, expiry, issuer and audience on
// every request.
//
// Claim lookup follows an explicit alias table. For each logical field the
// keys are tried in the listed order and the first non-empty value wins.
// The table is part of the wire contract shared with the token issuer.
package claims

const (
	// KeySubject is the registered subject claim
	KeySubject = "sub"
	// KeyEmail is the short email claim
	KeyEmail = "email"
	// KeyName is the short display name claim
	KeyName = "name"
	// KeyNameID is the short name identifier claim
	KeyNameID = "nameid"
	// KeyRole is the short role claim
	KeyRole = "role"

	// KeyRoleSchema is the schema-qualified role claim
	KeyRoleSchema = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	// KeyNameIdentifierSchema is the schema-qualified name identifier claim
	KeyNameIdentifierSchema = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	// KeyEmailSchema is the schema-qualified email claim
	KeyEmailSchema = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	// KeyNameSchema is the schema-qualified name claim
	KeyNameSchema = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
)

// IDKeys are tried in order to resolve the identity id.
var IDKeys = []string{KeySubject, KeyNameIdentifierSchema, KeyNameID}

// EmailKeys are tried in order to resolve the identity email.
var EmailKeys = []string{KeyEmail, KeyEmailSchema}

// NameKeys are tried in order to resolve the display name.
var NameKeys = []string{KeyName, KeyNameSchema}

// RoleKeys are all read and merged, short key first.
var RoleKeys = []string{KeyRole, KeyRoleSchema}
