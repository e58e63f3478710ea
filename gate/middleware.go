package gate

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

// Resolver builds the view of the current request
type Resolver func(ctx router.Context) View

// Logger is the subset of the auth logger used by the middleware
type Logger interface {
	Info(format string, args ...any)
}

type Config struct {
	// Resolve is required
	Resolve          Resolver
	LoginPath        string
	HomePath         string
	RejectedRouteKey string
	// RejectedRouteTTL bounds how long the attempted path is kept
	RejectedRouteTTL time.Duration
	Logger           Logger
	Now              func() time.Time
}

func (cfg Config) withDefaults() Config {
	if cfg.Resolve == nil {
		panic("GATE: middleware configuration: Resolve is required.")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if cfg.RejectedRouteKey == "" {
		cfg.RejectedRouteKey = "rejected_route"
	}
	if cfg.RejectedRouteTTL <= 0 {
		cfg.RejectedRouteTTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// Middleware guards a page route with the given route rules
func Middleware(route Route, cfg Config) router.MiddlewareFunc {
	cfg = cfg.withDefaults()

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			path := ctx.OriginalURL()
			decision := route.Evaluate(cfg.Resolve(ctx), path)

			switch decision.Outcome {
			case RenderChildren:
				return hf(ctx)
			case RedirectLogin:
				cfg.setRedirect(ctx, decision.From)
				return ctx.Redirect(cfg.LoginPath, redirectStatus(ctx))
			case RedirectHome:
				if cfg.Logger != nil {
					cfg.Logger.Info("role gate denied %s", path)
				}
				return ctx.Redirect(cfg.HomePath, redirectStatus(ctx))
			default:
				return ctx.Status(http.StatusServiceUnavailable).SendString("authentication pending")
			}
		}
	}
}

// Protected is Middleware with a ProtectedRoute
func Protected(cfg Config) router.MiddlewareFunc {
	return Middleware(ProtectedRoute{}, cfg)
}

// Roles is Middleware with a RoleRoute
func Roles(cfg Config, allowed ...string) router.MiddlewareFunc {
	return Middleware(RoleRoute{Allowed: allowed}, cfg)
}

func (cfg Config) setRedirect(ctx router.Context, from string) {
	if cfg.Logger != nil {
		cfg.Logger.Info("Setting redirect cookie %s=%s", cfg.RejectedRouteKey, from)
	}

	ctx.Cookie(&router.Cookie{
		Name:     cfg.RejectedRouteKey,
		Value:    from,
		Expires:  cfg.Now().Add(cfg.RejectedRouteTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirectStatus(ctx router.Context) int {
	if ctx.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
