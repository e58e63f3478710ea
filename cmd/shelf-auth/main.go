package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	auth "github.com/newsshelf/shelf-auth"
	"github.com/newsshelf/shelf-auth/config"
	"github.com/newsshelf/shelf-auth/events"
	"github.com/newsshelf/shelf-auth/provider/google"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Debug)
	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	auther     *auth.Auther
	http       *auth.RouteAuthenticator
	controller *auth.AuthController
	publisher  *events.Publisher
	srv        router.Server[*fiber.App]
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Debug {
		fmt.Println(print.MaybeHighlightJSON(redacted(cfg)))
	}

	db, err := connectDB(ctx, cfg.DB)
	if err != nil {
		return err
	}

	redisClient, err := connectRedis(ctx, logger, cfg.Redis)
	if err != nil && !errors.Is(err, errRedisNotConfigured) {
		_ = closeInfra(db, nil)
		return err
	}
	if errors.Is(err, errRedisNotConfigured) {
		logger.InfoContext(ctx, "no redis configuration detected; activity events are logged only")
	}

	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			logger.Error("close infrastructure failed", "error", cerr)
		}
	}()

	if err := auth.Migrate(ctx, db, newLogger(logger, "migrate")); err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wireAuth(ctx, auth.NewRepositoryManager(db), redisClient); err != nil {
		return err
	}

	a.srv = newServer()
	a.registerRoutes()

	g, gctx := errgroup.WithContext(ctx)

	if a.publisher != nil {
		g.Go(func() error {
			return a.publisher.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.InfoContext(gctx, "http server listening", "addr", cfg.HTTP.Addr)
		return a.srv.Serve(cfg.HTTP.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return a.srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) wireAuth(ctx context.Context, repo auth.RepositoryManager, redisClient redis.UniversalClient) error {
	if err := repo.Validate(); err != nil {
		return err
	}

	sink := events.Fanout{activityLogSink(newLogger(a.logger, "activity"))}
	if redisClient != nil {
		a.publisher = events.NewPublisher(redisClient, events.Config{
			ChannelPrefix: a.cfg.Events.ChannelPrefix,
			QueueSize:     a.cfg.Events.QueueSize,
			Logger:        newLogger(a.logger, "events"),
		})
		sink = append(sink, a.publisher)
	}

	provider := auth.NewUserProvider(repo).WithLogger(newLogger(a.logger, "auth:prv"))

	a.auther = auth.NewAuthenticator(provider, repo, a.cfg).
		WithLogger(newLogger(a.logger, "auth:authn")).
		WithActivitySink(sink).
		WithHashidIDs(a.cfg.HashidIDs)

	if a.cfg.OAuth.Enabled {
		verifier, err := google.NewVerifier(ctx, google.Config{
			ClientID:     a.cfg.OAuth.ClientID,
			ClientSecret: a.cfg.OAuth.ClientSecret,
			RedirectURL:  a.cfg.OAuth.RedirectURL,
			Issuer:       a.cfg.OAuth.Issuer,
		})
		if err != nil {
			return err
		}
		a.auther.WithExternalVerifier(google.Registry{google.ProviderName: verifier})
	}

	if err := a.auther.SeedMainAdmin(ctx, a.cfg.Admin.Email, a.cfg.Admin.Password); err != nil {
		return err
	}

	profiles := auth.NewProfiles(repo).
		WithLogger(newLogger(a.logger, "auth:profiles")).
		WithActivitySink(sink)

	admin := auth.NewAdmin(repo, a.cfg.GetMainAdminEmail()).
		WithLogger(newLogger(a.logger, "auth:admin")).
		WithActivitySink(sink)

	httpAuth, err := auth.NewHTTPAuthenticator(a.auther.TokenService(), a.cfg)
	if err != nil {
		return err
	}
	a.http = httpAuth.WithLogger(newLogger(a.logger, "auth:http"))

	a.controller = auth.NewAuthController(
		auth.WithControllerLogger(newLogger(a.logger, "auth:ctrl")),
		auth.WithAuthenticator(a.auther),
		auth.WithRouteAuthenticator(a.http),
		auth.WithProfiles(profiles),
		auth.WithAdmin(admin),
		auth.WithDebug(a.cfg.Debug),
	)

	return nil
}

func newServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: true,
		}))
	})
}

func (a *app) registerRoutes() {
	r := a.srv.Router()

	auth.RegisterAuthRoutes(r, a.controller)

	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(200, router.ViewContext{"ok": true})
	})

	registerPages(r, a)
}

func activityLogSink(logger auth.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		logger.Info("activity %s actor=%s user=%s", event.EventType, event.Actor.ID, event.UserID)
		return nil
	})
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	out.JWT.SigningKey = "***"
	out.Admin.Password = "***"
	out.Redis.Password = "***"
	out.OAuth.ClientSecret = "***"
	return out
}
