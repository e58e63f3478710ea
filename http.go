package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/newsshelf/shelf-auth/middleware/jwtware"
)

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

type RouteAuthenticator struct {
	cfg              Config
	validator        TokenValidator
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
	now              Clock
}

// NewHTTPAuthenticator builds the route guards around a token validator.
// The validator is the only trust boundary for protected routes.
func NewHTTPAuthenticator(validator TokenValidator, cfg Config) (*RouteAuthenticator, error) {
	if validator == nil {
		return nil, errors.New("token validator is required", errors.CategoryBadInput)
	}

	cookieDuration := time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Minute
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		validator:      validator,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
		now:            time.Now,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(l)
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute requires a valid token and, when roles are given, at
// least one of them in the verified claims.
func (a *RouteAuthenticator) ProtectedRoute(roles ...Role) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   a.AuthErrorHandler,
		TokenValidator: jwtValidator{a.validator},
		AllowedRoles:   RoleNames(roles),
		AuthScheme:     a.cfg.GetAuthScheme(),
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    a.cfg.GetTokenLookup(),
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(c, ac)
			}
			return c
		},
	})
}

// AdminRoute is ProtectedRoute restricted to ADMIN
func (a *RouteAuthenticator) AdminRoute() router.MiddlewareFunc {
	return a.ProtectedRoute(RoleAdmin)
}

// SetToken stores the issued token in the session cookie so server
// rendered pages can be gated too.
func (a *RouteAuthenticator) SetToken(ctx router.Context, token *IssuedToken) {
	if token == nil {
		return
	}
	a.setCookieToken(ctx, token.AccessToken, a.cookieDuration)
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// GetRedirect returns and clears the path recorded when a page guard
// rejected the caller.
func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

// WriteError sends err as an ErrorResponse with its mapped status
func (a *RouteAuthenticator) WriteError(ctx router.Context, err error) error {
	return a.ErrorHandler(ctx, err)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  a.now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	richErr := mapAuthError(err)

	a.Logger.Info(
		"Authentication error on %s: %s (%s)",
		c.OriginalURL(), richErr.Message, richErr.TextCode,
	)

	return a.ErrorHandler(c, richErr)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := ErrorStatus(richErr)
	if status >= 500 {
		a.Logger.Error("request failed: %s %s", richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
	} else {
		a.Logger.Debug("request rejected: %s %s", richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
	}

	return c.JSON(status, ErrorResponse{
		Message:  richErr.Message,
		TextCode: richErr.TextCode,
	})
}

// mapAuthError turns middleware failures into the auth error taxonomy
func mapAuthError(err error) *errors.Error {
	var richErr *errors.Error
	switch {
	case errors.Is(err, jwtware.ErrForbidden):
		return ErrInsufficientPermissions
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return ErrUnableToFindSession
	case IsTokenExpiredError(err):
		return ErrTokenExpired
	case errors.As(err, &richErr):
		return richErr
	case IsMalformedError(err):
		return ErrTokenMalformed
	default:
		return errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
			WithCode(errors.CodeUnauthorized)
	}
}

// jwtValidator adapts a TokenValidator to the middleware claims interface
type jwtValidator struct {
	v TokenValidator
}

func (j jwtValidator) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := j.v.Validate(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
