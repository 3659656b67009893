// Command authd serves the goAuthz HTTP API.
//
// Usage:
//
//	authd [serve]   start the HTTP server (default)
//	authd seed      create the super_admin role and the first superuser
//	authd migrate   apply Postgres migrations and exit
//
// Configuration is read from the environment; see loadSettings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/internal/httpapi"
	"github.com/MrEthical07/goAuthz/store/memory"
	"github.com/MrEthical07/goAuthz/store/postgres"
	"github.com/MrEthical07/goAuthz/store/sqlite"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q; expected serve, seed or migrate\n", cmd)
		os.Exit(2)
	}

	s, err := loadSettings()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := s.logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, s, logger)
	stop()
	if err != nil {
		logger.Error("authd failed", slog.String("command", cmd), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

var commands = map[string]func(context.Context, *settings, *slog.Logger) error{
	"serve":   serve,
	"seed":    seed,
	"migrate": migrate,
}

func serve(ctx context.Context, s *settings, logger *slog.Logger) error {
	engine, cleanup, err := setup(ctx, s, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if s.FirstSuperuser != "" {
		if err := ensureSuperuser(ctx, engine, s, logger); err != nil {
			return err
		}
	}

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		logger.Warn("security posture", slog.String("warning", w))
	}

	handler := httpapi.NewRouter(engine, logger, httpapi.Options{
		Metrics:        s.MetricsEnabled,
		RequestTimeout: 30 * time.Second,
	})
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            s.HTTPAddr,
		ShutdownTimeout: s.ShutdownTimeout,
	}, handler, logger)

	return srv.Run(ctx)
}

func seed(ctx context.Context, s *settings, logger *slog.Logger) error {
	engine, cleanup, err := setup(ctx, s, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return ensureSuperuser(ctx, engine, s, logger)
}

func migrate(_ context.Context, s *settings, logger *slog.Logger) error {
	if s.DatabaseDriver != "postgres" {
		return fmt.Errorf("migrate: driver %q has no migrations", s.DatabaseDriver)
	}
	return postgres.Migrate(s.DatabaseURL, logger)
}

func ensureSuperuser(ctx context.Context, engine *goAuthz.Engine, s *settings, logger *slog.Logger) error {
	in, err := s.superuserInput()
	if err != nil {
		return err
	}
	user, created, err := engine.EnsureSuperuser(ctx, in, httpapi.SuperAdminRole)
	if err != nil {
		return fmt.Errorf("ensure superuser: %w", err)
	}
	logger.Info("superuser ready",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("created", created),
		slog.Bool("superuser", user.IsSuperuser),
	)
	return nil
}

// setup opens the store and Redis, builds the engine and seeds the
// administrative roles.
func setup(ctx context.Context, s *settings, logger *slog.Logger) (*goAuthz.Engine, func(), error) {
	st, closer, err := openStore(ctx, s, logger)
	if err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(s.redisOptions())
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = closer.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	b := goAuthz.New().
		WithConfig(s.engineConfig()).
		WithRedis(rdb).
		WithStore(st).
		WithLogger(logger).
		WithPermissions(httpapi.Permissions()...).
		WithRoles(httpapi.Roles()...)
	if s.AuditLog {
		b = b.WithAuditSink(goAuthz.NewSlogSink(logger.With(slog.String("component", "audit"))))
	}

	engine, err := b.Build()
	if err != nil {
		_ = rdb.Close()
		_ = closer.Close()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}

	cleanup := func() {
		engine.Close()
		_ = rdb.Close()
		_ = closer.Close()
	}

	if err := engine.SeedRoles(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("seed roles: %w", err)
	}
	return engine, cleanup, nil
}

func openStore(ctx context.Context, s *settings, logger *slog.Logger) (goAuthz.CredentialStore, io.Closer, error) {
	switch s.DatabaseDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on exit")
		st := memory.New()
		return st, st, nil
	case "postgres":
		if err := postgres.Migrate(s.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		st, err := postgres.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "sqlite":
		st, err := sqlite.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		return nil, nil, errors.New("unknown database driver " + s.DatabaseDriver)
	}
}
