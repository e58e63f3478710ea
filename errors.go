package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeIdentityNotFound        = "IDENTITY_NOT_FOUND"
	TextCodeMainAdminProtected      = "MAIN_ADMIN_PROTECTED"
	TextCodeInvalidRole             = "INVALID_ROLE"
	TextCodeFavoriteTopicsRequired  = "FAVORITE_TOPICS_REQUIRED"
	TextCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenMalformed          = "TOKEN_MALFORMED"
	TextCodeEmptyPassword           = "EMPTY_PASSWORD"
	TextCodeExternalTokenInvalid    = "EXTERNAL_TOKEN_INVALID"
	TextCodeEmailTaken              = "EMAIL_TAKEN"
	TextCodeSessionUndecodable      = "SESSION_UNDECODABLE"
	TextCodeSessionMissing          = "SESSION_MISSING"
	TextCodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	TextCodeValidation              = "VALIDATION_FAILED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMainAdminProtected is returned when a mutation targets the main admin
var ErrMainAdminProtected = goerrors.New("main admin cannot be modified", goerrors.CategoryAuthz).
	WithTextCode(TextCodeMainAdminProtected).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidRole is returned for role names outside ADMIN, PUBLISHER, READER
var ErrInvalidRole = goerrors.New("invalid role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrFavoriteTopicsRequired is returned when READER or PUBLISHER is granted
// to an identity without favorite topics
var ErrFavoriteTopicsRequired = goerrors.New("favorite topics must be set for READER / PUBLISHER", goerrors.CategoryValidation).
	WithTextCode(TextCodeFavoriteTopicsRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword covers unknown emails and wrong passwords alike
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its exp claim
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing or verification
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrExternalTokenInvalid is returned when an external provider token is rejected
var ErrExternalTokenInvalid = goerrors.New("external token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeExternalTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when registering an email that already exists
var ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUnableToFindSession is the error when our request has no claims
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionUndecodable).
	WithCode(goerrors.CodeUnauthorized)

// ErrInsufficientPermissions is returned when the caller lacks the route role
var ErrInsufficientPermissions = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientPermissions).
	WithCode(goerrors.CodeForbidden)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// newValidationError wraps a payload validation failure keeping the
// first message readable for clients.
func newValidationError(message string, fields map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(fields)
	}
	return err
}

// ErrorStatus resolves the HTTP status for err. Errors that are not rich
// errors map to 500.
func ErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
