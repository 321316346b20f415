package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/planea/portal/internal/activity"
	"github.com/planea/portal/internal/course"
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/httpapi"
	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/platform/cache"
	"github.com/planea/portal/internal/platform/config"
	"github.com/planea/portal/internal/platform/database"
	"github.com/planea/portal/internal/portal"
	"github.com/planea/portal/internal/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	a.sessions.CloseAll(shutdownCtx)
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired services of a running server.
type app struct {
	handler  http.Handler
	sessions *portal.Manager
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the optional backing services and wires the portal. Without
// a database or cache URL the corresponding stores live in process memory.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]httpapi.HealthChecker{}

	var (
		profiles profile.Store
		courses  course.Store
		events   activity.Logger = activity.Nop{}
		pending  portal.PendingStore
		accounts identity.AccountStore = identity.NewMemoryAccountStore()
	)

	if cfg.UsesDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		checks["database"] = db

		pgProfiles, err := profile.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		pgCourses, err := course.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		pgAccounts, err := identity.NewPostgresAccountStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		profiles, courses, accounts = pgProfiles, pgCourses, pgAccounts
		events = activity.NewPostgres(db.Pool)
		slog.Info("using postgres stores")
	} else {
		profiles, courses = profile.NewMemoryStore(), course.NewMemoryStore()
		slog.Warn("no database configured, using in-memory stores")
	}

	if cfg.UsesCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks["cache"] = c

		rp, err := portal.NewRedisPendingStore(c.Client, cfg.Session.PendingTTL)
		if err != nil {
			a.close()
			return nil, err
		}
		pending = rp
		slog.Info("using redis pending store")
	} else {
		pending = portal.NewMemoryPendingStore()
	}

	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	if len(loader.Modules()) == 0 {
		a.close()
		return nil, fmt.Errorf("curriculum at %s has no modules", cfg.CurriculumPath)
	}

	if cfg.SeedTemplate {
		if _, err := course.SeedTemplate(ctx, courses, loader); err != nil {
			a.close()
			return nil, fmt.Errorf("seeding master template: %w", err)
		}
	}

	auth, err := newAuth(cfg.Auth, accounts)
	if err != nil {
		a.close()
		return nil, err
	}

	a.sessions, err = portal.NewManager(portal.ManagerConfig{
		Profiles:    profiles,
		Pending:     pending,
		Catalog:     loader,
		Events:      events,
		NewProvider: func() identity.Provider { return auth.NewClient() },
		IdleTTL:     cfg.Session.IdleTTL,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	svc, err := course.NewService(courses, profiles)
	if err != nil {
		a.close()
		return nil, err
	}

	srv, err := httpapi.New(httpapi.Config{
		Sessions: a.sessions,
		Catalog:  loader,
		Courses:  svc,
		Profiles: profiles,
		Checks:   checks,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = srv
	return a, nil
}

func newAuth(cfg config.AuthConfig, accounts identity.AccountStore) (*identity.LocalAuth, error) {
	tokens, err := identity.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTL)*time.Minute)
	if err != nil {
		return nil, err
	}
	var federated identity.FederatedVerifier
	if cfg.GoogleClientID != "" {
		federated = identity.GoogleVerifier{ClientID: cfg.GoogleClientID}
		slog.Info("google sign-in enabled")
	}
	return identity.NewLocalAuth(identity.LocalAuthConfig{
		Accounts:          accounts,
		Tokens:            tokens,
		Federated:         federated,
		MinPasswordLength: cfg.MinPasswordLength,
	})
}
