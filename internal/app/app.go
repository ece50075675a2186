// Package app wires the sealbox components together: configuration,
// logging, observability, storage, authentication, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sealbox/sealbox/internal/account"
	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/auth/initdata"
	"github.com/sealbox/sealbox/internal/auth/token"
	"github.com/sealbox/sealbox/internal/config"
	"github.com/sealbox/sealbox/internal/crypto"
	"github.com/sealbox/sealbox/internal/database"
	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/observability"
	"github.com/sealbox/sealbox/internal/redis"
	"github.com/sealbox/sealbox/internal/secret"
	"github.com/sealbox/sealbox/internal/server"
	"github.com/sealbox/sealbox/internal/server/endpoint"
	"github.com/sealbox/sealbox/internal/store"
	"github.com/sealbox/sealbox/internal/telegram"
	"github.com/sealbox/sealbox/internal/util"
	"github.com/sealbox/sealbox/internal/version"
)

const gracefulTimeout = 15 * time.Second

// App holds the assembled service and its shutdown order.
type App struct {
	cfg *config.AppConfig
	log *logger.Logger

	db    *database.DB
	cache *redis.Client
	srv   *server.Server

	secrets *secret.Service

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New builds the application from a validated config. The caller owns the
// returned App and must Run it or close it via Shutdown.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	a := &App{cfg: cfg, log: log}
	log.Info("Configuration loaded", logger.Fields(
		"environment", cfg.Environment,
		"database_driver", cfg.Database.Driver,
		"redis_enabled", cfg.Redis.Enabled,
		"bot_token", util.MaskSecret(cfg.Telegram.BotToken, 4),
	))

	if err := a.initObservability(ctx); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("app: database: %w", err)
	}
	a.db = db

	if cfg.Redis.Enabled {
		cache, err := redis.New(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.cache = cache
	}

	accounts := store.NewAccountStore(db, log)
	if err := accounts.Migrate(); err != nil {
		return nil, fmt.Errorf("app: migrate accounts: %w", err)
	}
	secretStore := store.NewSecretStore(db, log)
	if err := secretStore.Migrate(); err != nil {
		return nil, fmt.Errorf("app: migrate secrets: %w", err)
	}

	var lookup auth.AccountLookup = accounts
	if a.cache != nil {
		lookup = store.NewCachedAccountLookup(accounts, a.cache, store.DefaultAccountCacheTTL, log)
	}

	issuer, err := token.NewIssuer(cfg.Auth.Token)
	if err != nil {
		return nil, fmt.Errorf("app: token issuer: %w", err)
	}
	validator := initdata.NewValidator(cfg.Telegram.BotToken,
		initdata.WithMaxAge(cfg.Auth.InitDataMaxAge))

	guard := auth.NewGuard(auth.TokenVerifierFunc(issuer.VerifierFunc()), validator, lookup, log)
	if a.meterProvider != nil {
		metrics, err := observability.NewMetrics(a.meterProvider.Meter(config.ServiceName))
		if err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
		guard.WithMetrics(metrics)
	}

	sealer, err := crypto.New(cfg.Secrets.SealingKey,
		crypto.WithAlgorithm(crypto.Algorithm(cfg.Secrets.Algorithm)))
	if err != nil {
		return nil, fmt.Errorf("app: sealer: %w", err)
	}

	a.secrets = secret.NewService(secretStore, sealer, cfg.Secrets.SealingKey, a.cache, log).
		WithNotifier(a.notifier())
	accountSvc := account.NewService(accounts, issuer, cfg.Auth.Token.AccessTokenTTL, log)

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, a.healthChecker())
	registerRoutes(srv.GinEngine(), guard, &cfg.Secrets,
		secret.NewHandler(a.secrets), account.NewHandler(accountSvc))
	a.srv = srv

	return a, nil
}

// notifier picks the share-notification transport: the Bot API client when
// it can be built, a log-only fallback otherwise. Notification failure must
// never fail a request, so there is no error path here.
func (a *App) notifier() secret.Notifier {
	client, err := telegram.NewClient(a.cfg.Telegram, a.log)
	if err != nil {
		a.log.Warn("Telegram client unavailable, using log notifier", logger.Fields(
			logger.FieldError, err.Error(),
		))
		return telegram.NewLogNotifier(a.log)
	}
	return client
}

func (a *App) initObservability(ctx context.Context) error {
	obs := a.cfg.Observability
	if obs.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    a.cfg.Name,
			ServiceVersion: version.Version,
			Environment:    a.cfg.Environment,
			Endpoint:       obs.Tracing.Endpoint,
			Insecure:       obs.Tracing.Insecure,
			SampleRate:     obs.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("app: tracer: %w", err)
		}
		a.tracerProvider = tp
	}
	if obs.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, observability.MeterConfig{
			ServiceName:    a.cfg.Name,
			ServiceVersion: version.Version,
			Environment:    a.cfg.Environment,
			Endpoint:       obs.Metrics.Endpoint,
			Insecure:       obs.Metrics.Insecure,
			Interval:       obs.Metrics.Interval,
		})
		if err != nil {
			return fmt.Errorf("app: meter: %w", err)
		}
		a.meterProvider = mp
	}
	return nil
}

// healthChecker reports database and redis connectivity for /health.
func (a *App) healthChecker() endpoint.HealthChecker {
	return func(ctx context.Context) []endpoint.ComponentHealth {
		checks := []endpoint.ComponentHealth{checkComponent(ctx, "database", a.db.Ping)}
		if a.cache != nil {
			checks = append(checks, checkComponent(ctx, "redis", a.cache.Ping))
		}
		return checks
	}
}

func checkComponent(ctx context.Context, name string, ping func(context.Context) error) endpoint.ComponentHealth {
	h := endpoint.ComponentHealth{Name: name, Status: endpoint.StatusHealthy}
	if err := ping(ctx); err != nil {
		h.Status = endpoint.StatusUnhealthy
		h.Error = err.Error()
	}
	return h
}

// Run starts the server and the expired-secret janitor, then blocks until
// the context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.srv.Start(ctx); err != nil {
		return fmt.Errorf("app: server: %w", err)
	}
	a.log.Info("sealbox started", logger.Fields(
		"addr", a.srv.Addr(),
		"version", version.Version,
		"environment", a.cfg.Environment,
	))

	go a.janitor(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		a.log.Info("Shutdown signal received", logger.Fields("signal", s.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer shutdownCancel()
	return a.Shutdown(shutdownCtx)
}

// janitor sweeps expired secrets on the configured interval. Reads already
// treat expired records as absent; the sweep just reclaims storage.
func (a *App) janitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Secrets.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.secrets.PurgeExpired(ctx); err != nil {
				a.log.Warn("Expired secret sweep failed", logger.Fields(
					logger.FieldError, err.Error(),
				))
			}
		}
	}
}

// Shutdown stops the server and closes connections in reverse start order.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if a.srv != nil {
		if err := a.srv.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.log.Info("sealbox stopped")
	return firstErr
}
