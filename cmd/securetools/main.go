package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/daisinet/securetools/internal/adapter/cache"
	oauthadapter "github.com/daisinet/securetools/internal/adapter/oauth"
	"github.com/daisinet/securetools/internal/authn"
	"github.com/daisinet/securetools/internal/config"
	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
	httptransport "github.com/daisinet/securetools/internal/http"
	"github.com/daisinet/securetools/internal/http/handler"
	apimiddleware "github.com/daisinet/securetools/internal/middleware"
	"github.com/daisinet/securetools/internal/repository"
	"github.com/daisinet/securetools/internal/server"
	"github.com/daisinet/securetools/internal/service"
	"github.com/daisinet/securetools/internal/service/flow"
	"github.com/daisinet/securetools/internal/telemetry"
	"github.com/daisinet/securetools/internal/tools"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSetupStore,
			newVerifierStore,
			newProviderClient,
			newValidator,
			newProviders,
			newFlowEngine,
			newToolRegistry,
			newBroker,
			newBrokerHandler,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

// newSetupStore picks the installation registry backend. Without a
// DATABASE_URL the broker runs on an in-memory registry, which is only
// suitable for local development.
func newSetupStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.SetupStore, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory installation registry")
		return repository.NewMemorySetupStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := repository.NewPostgresSetupStore(pool, logger)
	if err := store.Initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return store, nil
}

// newVerifierStore picks the PKCE verifier backend. Redis makes verifiers
// visible to every replica; the in-memory store is single-process only.
func newVerifierStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.VerifierStore, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory verifier store")
		return cacheadapter.NewMemoryVerifierStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisVerifierStore(client), nil
}

func newProviderClient(cfg config.Config) oauthadapter.ProviderClient {
	return oauthadapter.NewHTTPProviderClient(&http.Client{Timeout: cfg.ProviderTimeout})
}

func newValidator(cfg config.Config, store repository.SetupStore) (*authn.Validator, error) {
	return authn.NewValidator(cfg.OperatorAuthKey, store)
}

func newProviders(cfg config.Config) map[string]domainoauth.ProviderConfig {
	return cfg.Providers
}

func newFlowEngine(verifiers repository.VerifierStore, client oauthadapter.ProviderClient, logger *zap.Logger) *flow.Engine {
	return flow.NewEngine(verifiers, client, logger)
}

func newToolRegistry(logger *zap.Logger) *tools.Registry {
	registry := tools.NewRegistry(nil, logger)
	registry.Register("echo", tools.Echo)
	return registry
}

func newBroker(store repository.SetupStore, engine *flow.Engine, providers map[string]domainoauth.ProviderConfig, registry *tools.Registry, logger *zap.Logger) *service.Broker {
	return service.NewBroker(store, engine, providers, registry.Executor(), logger)
}

func newBrokerHandler(broker *service.Broker, logger *zap.Logger) *handler.BrokerHandler {
	return handler.NewBrokerHandler(broker, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
