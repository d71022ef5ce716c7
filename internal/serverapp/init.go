package serverapp

import (
	"context"
	"fmt"

	"users-graphql/internal/executor"
	"users-graphql/internal/explorer"
	"users-graphql/internal/gqlrequest"
	"users-graphql/internal/httpapi"
	"users-graphql/internal/schema"
)

// Init initializes all runtime resources. It is idempotent. On failure every
// resource acquired so far is released and the app stays uninitialized.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	db, err := openPool(ctx, a.cfg, a.logger, graphqlMetrics)
	if err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", a.cfg.Database.RedactedURL(), err)
	}
	cleanup.push("database pool", func(context.Context) error {
		return db.Close()
	})

	registry, err := BuildRegistry(&schema.Data{Pool: db}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	page, err := explorer.New(explorer.DefaultConfig())
	if err != nil {
		return err
	}

	deps := httpapi.Deps{
		Executor: executor.New(registry, executor.WithMetrics(graphqlMetrics)),
		Registry: registry,
		Explorer: page,
		Health:   db,
		Limits: gqlrequest.Limits{
			MaxFiles:     a.cfg.Server.MaxUploadFiles,
			MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		},
		HealthTimeout: a.cfg.Server.HealthCheckTimeout,
		GraphiQL:      a.cfg.Server.GraphiQLEnabled,
		Tracing:       a.cfg.Observability.TracingEnabled,
	}
	if meterProvider != nil {
		deps.Metrics = meterProvider.Handler()
	}
	handlers, err := httpapi.NewHandlers(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP handlers: %w", err)
	}
	router, err := httpapi.NewRouter(a.cfg.Server.Engine, handlers)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP router: %w", err)
	}
	handler := wrapHTTPHandler(a.cfg, a.logger, router)

	srv := buildServer(a.cfg, handler)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.tracerProvider = tracerProvider
	a.pool = db
	a.registry = registry
	a.handler = handler
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
