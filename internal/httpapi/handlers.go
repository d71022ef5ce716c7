// Package httpapi exposes the GraphQL core over HTTP. The handlers are
// host-independent; std.go and gin.go mount them on net/http's ServeMux or
// on a gin engine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"users-graphql/internal/executor"
	"users-graphql/internal/explorer"
	"users-graphql/internal/gqlrequest"
	"users-graphql/internal/logging"
	"users-graphql/internal/middleware"
	"users-graphql/internal/schema"

	"github.com/graphql-go/handler"
)

// Route paths.
const (
	PathRoot    = "/"
	PathHealth  = "/health"
	PathCompat  = "/graphql"
	PathMetrics = "/metrics"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the routes need.
type Deps struct {
	Executor *executor.Executor
	Registry *schema.Registry
	Explorer *explorer.Page
	Health   Pinger

	Limits        gqlrequest.Limits
	HealthTimeout time.Duration

	// GraphiQL serves GraphiQL on GET /graphql from browsers.
	GraphiQL bool
	// Tracing wraps GraphQL execution in a graphql.execute span.
	Tracing bool
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Handlers is the set of route handlers shared by every host.
type Handlers struct {
	GraphQL  http.Handler
	Explorer http.Handler
	Health   http.Handler
	Compat   http.Handler
	Metrics  http.Handler
}

// NewHandlers builds the route handlers.
func NewHandlers(d Deps) (*Handlers, error) {
	if d.Executor == nil {
		return nil, errors.New("httpapi: executor is required")
	}
	if d.Registry == nil {
		return nil, errors.New("httpapi: schema registry is required")
	}
	page := d.Explorer
	if page == nil {
		var err error
		if page, err = explorer.New(explorer.DefaultConfig()); err != nil {
			return nil, err
		}
	}
	if d.HealthTimeout <= 0 {
		d.HealthTimeout = 2 * time.Second
	}

	var gql http.Handler = GraphQLHandler(d.Executor, d.Limits)
	var compat http.Handler = CompatHandler(d.Executor, d.Registry, d.Limits, d.GraphiQL)
	if d.Tracing {
		gql = middleware.GraphQLTracingMiddleware()(gql)
		compat = middleware.GraphQLTracingMiddleware()(compat)
	}

	h := &Handlers{
		GraphQL:  gql,
		Explorer: page,
		Compat:   compat,
		Metrics:  d.Metrics,
	}
	if d.Health != nil {
		h.Health = HealthHandler(d.Health, d.HealthTimeout)
	}
	return h, nil
}

// GraphQLHandler decodes a POST body, executes it and writes the response
// envelope. Undecodable payloads get 400 with a plain-text reason. Nothing
// is written when the client goes away mid-execution.
func GraphQLHandler(exec *executor.Executor, limits gqlrequest.Limits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := gqlrequest.Decode(w, r, limits)
		if err != nil {
			rejectPayload(w, r, err)
			return
		}
		writeResult(w, r, exec, req)
	}
}

// CompatHandler serves GraphQL-over-HTTP on /graphql: GET query strings,
// form posts and JSON or application/graphql bodies, decoded by
// graphql-go/handler and executed like POST /. With graphiql set, browser
// GETs get the GraphiQL page instead.
func CompatHandler(exec *executor.Executor, reg *schema.Registry, limits gqlrequest.Limits, graphiql bool) http.HandlerFunc {
	var page http.Handler
	if graphiql {
		h := handler.New(&handler.Config{Schema: reg.Schema(), GraphiQL: true})
		data := reg.Data()
		// The query string is dropped so the page never executes anything
		// itself; GraphiQL posts every query back through the executor.
		page = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bare := r.Clone(schema.WithData(r.Context(), data))
			bare.URL.RawQuery = ""
			w.Header().Set("Content-Type", explorer.ContentType)
			h.ServeHTTP(w, bare)
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if page != nil && wantsGraphiQL(r) {
			page.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodPost && limits.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBodyBytes)
		}

		// Undecodable bodies come back as empty options.
		opts := handler.NewRequestOptions(r)
		if strings.TrimSpace(opts.Query) == "" {
			rejectPayload(w, r, fmt.Errorf("%w: missing query", gqlrequest.ErrMalformed))
			return
		}
		writeResult(w, r, exec, gqlrequest.Request{
			Query:         opts.Query,
			OperationName: opts.OperationName,
			Variables:     opts.Variables,
		})
	}
}

func wantsGraphiQL(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if _, raw := r.URL.Query()["raw"]; raw {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func rejectPayload(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Debug("rejected GraphQL payload", slog.String("error", err.Error()))
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeResult(w http.ResponseWriter, r *http.Request, exec *executor.Executor, req gqlrequest.Request) {
	reqLogger := logging.FromContext(r.Context())

	resp := exec.Execute(r.Context(), req)
	if resp.Canceled() {
		reqLogger.Debug("request canceled before completion")
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		reqLogger.Error("failed to encode GraphQL response", slog.String("error", err.Error()))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HealthHandler pings the database within timeout.
func HealthHandler(p Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", contentTypeJSON)

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
