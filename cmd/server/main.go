package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/resreg/resreg/internal/api"
	"github.com/resreg/resreg/internal/config"
	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/metrics"
	"github.com/resreg/resreg/internal/migrations"
	"github.com/resreg/resreg/internal/person"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/reconcile"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/session"
	"github.com/resreg/resreg/internal/token"
	"github.com/resreg/resreg/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := runMigrations(ctx, cfg.DatabaseURL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database not reachable at startup; health will report degraded", "error", err)
	}

	flags := feature.NewEnvSource(cfg.FederatedAuthEnabled)

	dirClient := directory.NewSCIMClient(cfg.DirectoryBaseURL, cfg.DirectoryToken,
		directory.WithTimeout(time.Duration(cfg.DirectoryTimeout)*time.Second))
	var dirChecker directory.HealthChecker
	if cfg.DirectoryBaseURL != "" {
		dirChecker = dirClient
	} else if cfg.FederatedAuthEnabled {
		slog.Warn("federated auth enabled but DIRECTORY_BASE_URL is not set")
	}

	projectRepo := project.NewRepository(pool)
	personRepo := person.NewRepository(pool)
	userRepo := user.NewRepository(pool)
	roleRepo := role.NewRepository(pool)
	tokenRepo := token.NewRepository(pool)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	reconciler := reconcile.New(flags, dirClient, projectRepo, userRepo, personRepo, roleRepo, collector)

	sessionTTL := time.Duration(cfg.SessionTTL) * time.Minute
	sessionStore := session.NewPostgresStore(pool)
	cookies := session.NewCookieCodec(cfg.SessionCookie, []byte(cfg.SessionSecret), sessionTTL, cfg.SecureCookies)

	mapper := identity.NewDirectoryMapper(dirClient)
	resolver := identity.NewSwitch(flags,
		identity.NewFederatedResolver(sessionStore, mapper, userRepo, sessionTTL),
		identity.NewBypassResolver(),
	)

	tokenService := token.NewService(tokenRepo, userRepo, cfg.BcryptCost)

	router := api.NewRouter(api.RouterDeps{
		Flags:          flags,
		GatewaySecret:  []byte(cfg.GatewaySecret),
		Resolver:       resolver,
		Reconciler:     reconciler,
		Cookies:        cookies,
		CookieName:     cfg.SessionCookie,
		TokenService:   tokenService,
		TokenRepo:      tokenRepo,
		ProjectRepo:    projectRepo,
		UserRepo:       userRepo,
		RoleRepo:       roleRepo,
		DirChecker:     dirChecker,
		DBPinger:       pool,
		Registry:       registry,
		Version:        cfg.Version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.SyncInterval > 0 {
		sweeper := reconcile.NewSweeper(reconciler, projectRepo, time.Duration(cfg.SyncInterval)*time.Minute)
		go sweeper.Start(ctx)
	}

	go purgeExpiredSessions(ctx, sessionStore)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func runMigrations(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func purgeExpiredSessions(ctx context.Context, store *session.PostgresStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := store.DeleteExpired(ctx); err != nil {
				slog.Error("failed to purge expired sessions", "error", err)
			} else if n > 0 {
				slog.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
