package serverapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"users-graphql/internal/config"
	"users-graphql/internal/httpapi"
	"users-graphql/internal/logging"
	"users-graphql/internal/middleware"
	"users-graphql/internal/observability"
	"users-graphql/internal/pool"
	"users-graphql/internal/resolver"
	"users-graphql/internal/schema"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InitLogger builds the process logger from cfg and installs it as the slog
// default. When log export is enabled the returned provider must be attached
// to the App so it is flushed on shutdown.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		ServiceName: cfg.Observability.ServiceName,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", cfg.Observability.OTLP.Endpoint),
		slog.String("otlp_protocol", cfg.Observability.OTLP.Protocol),
		slog.Bool("insecure", cfg.Observability.OTLP.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(context.Background(), observabilityConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	return logger, loggerProvider, nil
}

func observabilityConfig(cfg *config.Config) observability.Config {
	otlp := cfg.Observability.OTLP
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
		},
	}
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	graphqlMetrics, err := observability.InitGraphQLMetrics()
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}
	logger.Info("OpenTelemetry metrics initialized", slog.String("metrics_endpoint", httpapi.PathMetrics))
	return meterProvider, graphqlMetrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracerProvider, err := observability.InitTracerProvider(ctx, observabilityConfig(cfg))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized",
		slog.String("otlp_endpoint", cfg.Observability.OTLP.Endpoint),
		slog.String("otlp_protocol", cfg.Observability.OTLP.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	return tracerProvider, nil
}

func openPool(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *observability.GraphQLMetrics) (*pool.Pool, error) {
	return pool.Open(ctx, pool.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		RetryInterval:   cfg.Database.ConnectRetryInterval,
		Tracing:         cfg.Observability.TracingEnabled,
		Metrics:         cfg.Observability.MetricsEnabled,
		Logger:          logger,
		Options:         []pool.Option{pool.WithAcquireObserver(metrics.RecordAcquire)},
	})
}

// BuildRegistry builds the schema registry with the users resolver wired in.
// data may carry a nil pool when only the schema shape is needed.
func BuildRegistry(data *schema.Data, logger *logging.Logger) (*schema.Registry, error) {
	users, err := resolver.NewUsers()
	if err != nil {
		return nil, err
	}
	opts := []schema.Option{}
	if logger != nil {
		opts = append(opts, schema.WithLogger(logger.Logger))
	}
	return schema.New(data, schema.Resolvers{Users: users.Resolve}, opts...)
}

// PrintSchema writes the schema in SDL form to w. No database is contacted.
func PrintSchema(w io.Writer) error {
	registry, err := BuildRegistry(&schema.Data{}, nil)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, registry.SDL())
	return err
}

// wrapHTTPHandler applies the process-wide middleware. The outermost layer is
// otelhttp, followed by rate limiting, CORS and request logging.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	handler = middleware.LoggingMiddleware(logger)(handler)

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	if cfg.Observability.InstrumentationEnabled() {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case httpapi.PathRoot, httpapi.PathCompat, httpapi.PathHealth, httpapi.PathMetrics:
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// explorerURL reports the explorer address for the bound listener, so an
// ephemeral port shows up as the port actually chosen.
func explorerURL(cfg *config.Config, ln net.Listener) string {
	server := cfg.Server
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		server.Port = addr.Port
	}
	return server.ExplorerURL()
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, ln net.Listener) chan error {
	serverErrors := make(chan error, 1)

	logAttrs := []any{
		slog.String("explorer_url", explorerURL(cfg, ln)),
		slog.String("address", ln.Addr().String()),
		slog.String("engine", engineName(cfg.Server.Engine)),
		slog.Int("max_connections", cfg.Database.MaxConnections),
		slog.Int("max_upload_files", cfg.Server.MaxUploadFiles),
	}
	if cfg.Server.RateLimitEnabled {
		logAttrs = append(logAttrs,
			slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
			slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
		)
	}
	logger.Info("server listening", logAttrs...)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

func engineName(engine string) string {
	if engine == "" {
		return httpapi.EngineStd
	}
	return engine
}
