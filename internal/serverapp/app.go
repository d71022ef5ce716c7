// Package serverapp wires configuration, observability, the database pool
// and the HTTP host into one process lifecycle: New, Init, Start,
// WaitForStop and Shutdown.
package serverapp

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"users-graphql/internal/config"
	"users-graphql/internal/logging"
	"users-graphql/internal/observability"
	"users-graphql/internal/pool"
	"users-graphql/internal/schema"
)

// Shutdown pathways reported by WaitForStop.
const (
	ReasonSignal      = "signal"
	ReasonServerError = "server_error"
)

// App owns runtime resources for the server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	graphqlMetrics *observability.GraphQLMetrics
	tracerProvider *observability.TracerProvider

	pool     *pool.Pool
	registry *schema.Registry
	handler  http.Handler

	srv      *http.Server
	listener net.Listener

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler built by Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// Addr returns the address the server is listening on, or "" before Start.
func (a *App) Addr() string {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
