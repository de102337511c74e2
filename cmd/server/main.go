package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/admission-gate/internal/container"
	"github.com/serroba/admission-gate/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.MetricsPackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherPackage(injector)
	container.HTTPPackage(injector)
}

// limitsSource names where the limiter configuration came from.
func limitsSource(options *container.Options) string {
	if options.LimitsFile != "" {
		return options.LimitsFile
	}

	return "flags"
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			// Fail before listening when the limits are invalid.
			dispatcher, err := do.Invoke[*ratelimit.Dispatcher](injector)
			if err != nil {
				logger.Fatal("invalid rate limit configuration",
					zap.String("source", limitsSource(options)),
					zap.Error(err),
				)
			}

			router := do.MustInvoke[*chi.Mux](injector)
			_ = do.MustInvoke[huma.API](injector)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			logger.Info("admission gate starting",
				zap.Int("port", options.Port),
				zap.String("strategy", string(dispatcher.Strategy())),
				zap.String("limits", limitsSource(options)),
				zap.Bool("trustProxyHeaders", options.TrustProxyHeaders),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
