package main

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"

	auth "github.com/newsshelf/shelf-auth"
	"github.com/newsshelf/shelf-auth/gate"
)

// registerPages mounts the server rendered pages guarded by the session
// cookie. API routes are guarded by the JWT middleware instead.
func registerPages(r router.Router[*fiber.App], a *app) {
	cfg := gate.Config{
		Resolve:          tokenResolver(a),
		LoginPath:        a.cfg.HTTP.LoginPath,
		HomePath:         a.cfg.GetRejectedRouteDefault(),
		RejectedRouteKey: a.cfg.GetRejectedRouteKey(),
		Logger:           newLogger(a.logger, "gate"),
	}

	r.Get(a.cfg.HTTP.LoginPath, func(ctx router.Context) error {
		return ctx.JSON(200, router.ViewContext{
			"page":     "login",
			"redirect": ctx.Cookies(a.cfg.GetRejectedRouteKey()),
		})
	})

	r.Get("/app/profile", func(ctx router.Context) error {
		return ctx.JSON(200, router.ViewContext{"page": "profile"})
	}, gate.Protected(cfg))

	r.Get("/app/publish", func(ctx router.Context) error {
		return ctx.JSON(200, router.ViewContext{"page": "publish"})
	}, gate.Roles(cfg, auth.RoleNames([]auth.Role{auth.RolePublisher, auth.RoleAdmin})...))

	r.Get("/app/admin", func(ctx router.Context) error {
		return ctx.JSON(200, router.ViewContext{"page": "admin"})
	}, gate.Roles(cfg, string(auth.RoleAdmin)))
}

// tokenResolver verifies the session cookie, or the bearer header when no
// cookie is set, so pages are gated on verified claims.
func tokenResolver(a *app) gate.Resolver {
	validator := a.auther.TokenService()
	scheme := a.cfg.GetAuthScheme()

	return func(ctx router.Context) gate.View {
		token := ctx.Cookies(a.cfg.GetContextKey())
		if token == "" {
			header := ctx.GetString("Authorization", "")
			if len(header) > len(scheme)+1 && strings.EqualFold(header[:len(scheme)], scheme) {
				token = strings.TrimSpace(header[len(scheme):])
			}
		}
		if token == "" {
			return gate.Anonymous
		}

		claims, err := validator.Validate(token)
		if err != nil {
			return gate.Anonymous
		}
		return gate.StaticView{Authenticated: true, RoleNames: claims.RoleNames()}
	}
}
