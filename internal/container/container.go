package container

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/admission-gate/internal/handlers"
	"github.com/serroba/admission-gate/internal/health"
	"github.com/serroba/admission-gate/internal/messaging"
	"github.com/serroba/admission-gate/internal/middleware"
	"github.com/serroba/admission-gate/internal/ratelimit"
	"github.com/serroba/admission-gate/internal/store"
	"github.com/serroba/admission-gate/internal/telemetry"
	telemetrystore "github.com/serroba/admission-gate/internal/telemetry/store"
	"go.uber.org/zap"
)

// RejectionConsumerGroup is the redis stream consumer group reading
// rejection events.
const RejectionConsumerGroup = "rejection-store"

const requestIDLength = 21

// Redis owns the shared client and closes it on injector shutdown.
type Redis struct {
	Client redis.UniversalClient
}

// Shutdown closes the client.
func (r *Redis) Shutdown() error {
	return r.Client.Close()
}

// Postgres owns the connection pool and closes it on injector shutdown.
type Postgres struct {
	Pool *pgxpool.Pool
}

// Shutdown closes the pool.
func (p *Postgres) Shutdown() error {
	p.Pool.Close()

	return nil
}

// LoggerPackage provides *zap.Logger, JSON by default and human readable
// when LogFormat is "console".
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "console" {
			return zap.NewDevelopment()
		}

		return zap.NewProduction()
	})
}

// RedisPackage provides *Redis.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides *Postgres. The pool connects lazily and is only
// invoked when PostgresDSN is set.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}

		return &Postgres{Pool: pool}, nil
	})
}

// MetricsPackage provides the prometheus registry and the limiter metrics
// registered on it.
func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return reg, nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.Metrics, error) {
		return ratelimit.NewMetrics(do.MustInvoke[*prometheus.Registry](i)), nil
	})
}

// RateLimitPackage provides the *ratelimit.Dispatcher over Redis.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.Dispatcher, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*Redis](i).Client
		metrics := do.MustInvoke[*ratelimit.Metrics](i)

		cfg, err := opts.RateLimitConfig()
		if err != nil {
			return nil, err
		}

		backends := store.NewRateLimitRedisStore(client).Backends()
		if opts.Atomic {
			backends = store.NewAtomicRedisStateStore(client, store.DefaultTxRetries).Backends()
		}

		resolver := ratelimit.FallbackResolver()
		if opts.PerPath {
			resolver = ratelimit.PathScopedResolver(resolver)
		}

		dispatcher, err := ratelimit.New(cfg, backends, resolver,
			ratelimit.WithLogger(logger),
			ratelimit.WithMetrics(metrics),
		)
		if err != nil {
			return nil, err
		}

		logger.Info("rate limiter configured",
			zap.String("strategy", string(dispatcher.Strategy())),
			zap.Bool("atomic", opts.Atomic),
			zap.Bool("perPath", opts.PerPath),
		)

		return dispatcher, nil
	})
}

// PublisherPackage provides the rejection event publisher over redis
// streams.
func PublisherPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*Redis](i).Client

		publisher, err := messaging.NewRedisStreamPublisher(client, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (*telemetry.Publisher, error) {
		return telemetry.NewPublisher(do.MustInvoke[*messaging.PublisherGroup](i)), nil
	})
}

// ConsumerPackage provides the consumer group that stores rejection events,
// in Postgres when PostgresDSN is set and in the log otherwise.
func ConsumerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (telemetry.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.PostgresDSN == "" {
			logger.Info("no postgres configured, rejections are only logged")

			return telemetrystore.NewNoop(logger), nil
		}

		pg := telemetrystore.NewPostgres(do.MustInvoke[*Postgres](i).Pool)
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, err
		}

		return pg, nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*Redis](i).Client
		rejections := do.MustInvoke[telemetry.Store](i)

		subscriber, err := messaging.NewRedisStreamSubscriber(
			client, RejectionConsumerGroup, messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(telemetry.NewRejectionConsumer(subscriber, rejections, logger))

		return group, nil
	})
}

// HTTPPackage provides the router and the huma API with the admission
// middleware and every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		reg := do.MustInvoke[*prometheus.Registry](i)

		router := chi.NewMux()
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		dispatcher := do.MustInvoke[*ratelimit.Dispatcher](i)
		publisher := do.MustInvoke[*telemetry.Publisher](i)

		newID, err := nanoid.Standard(requestIDLength)
		if err != nil {
			return nil, fmt.Errorf("create request id generator: %w", err)
		}

		api := humachi.New(router, huma.DefaultConfig("Admission Gate", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api, newID, opts.TrustProxyHeaders))
		api.UseMiddleware(middleware.RateLimiter(api, dispatcher, publisher, logger))

		checks := map[string]health.Checker{
			"redis": health.NewRedisChecker(do.MustInvoke[*Redis](i).Client),
		}
		if opts.PostgresDSN != "" {
			checks["postgres"] = do.MustInvoke[*Postgres](i).Pool
		}

		health.RegisterRoutes(api, health.NewHandler(checks))
		handlers.RegisterRoutes(api)

		if opts.TrustProxyHeaders {
			handlers.RegisterDecisionRoutes(api, handlers.NewDecisionHandler(dispatcher, logger))
		}

		return api, nil
	})
}
