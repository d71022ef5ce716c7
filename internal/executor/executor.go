// Package executor runs one decoded GraphQL request against the schema
// registry and produces the response envelope.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"users-graphql/internal/gqlrequest"
	"users-graphql/internal/logging"
	"users-graphql/internal/observability"
	"users-graphql/internal/schema"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
)

// ErrCanceled is reported when the caller's context ends before execution
// finishes. No response body should be written for a canceled request.
var ErrCanceled = errors.New("request canceled")

// Executor executes requests against a fixed schema. It is safe for
// concurrent use.
type Executor struct {
	registry *schema.Registry
	metrics  *observability.GraphQLMetrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records request metrics on m.
func WithMetrics(m *observability.GraphQLMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New returns an executor for registry.
func New(registry *schema.Registry, opts ...Option) *Executor {
	e := &Executor{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute parses, validates and runs req. It never returns nil. When ctx
// ends during execution the response is marked canceled and carries no data.
func (e *Executor) Execute(ctx context.Context, req gqlrequest.Request) *Response {
	start := time.Now()
	e.metrics.IncrementActiveRequests(ctx)
	defer e.metrics.DecrementActiveRequests(ctx)

	resp, analysis := e.execute(ctx, req)

	opType := ""
	if analysis != nil {
		opType = analysis.OperationType
	}
	if !resp.canceled {
		e.metrics.RecordRequest(ctx, time.Since(start), len(resp.Errors), opType)
	}

	attrs := []any{
		slog.Duration("duration", time.Since(start)),
		slog.Int("errors", len(resp.Errors)),
		slog.Bool("canceled", resp.canceled),
	}
	if analysis != nil && analysis.Operation != nil {
		attrs = append(attrs,
			slog.String("operation_name", analysis.OperationName),
			slog.String("operation_type", analysis.OperationType),
		)
	}
	logging.FromContext(ctx).Debug("graphql request executed", attrs...)
	return resp
}

func (e *Executor) execute(ctx context.Context, req gqlrequest.Request) (*Response, *gqlrequest.Analysis) {
	analysis := gqlrequest.Analyze(req)
	if analysis.ParseError != nil {
		return requestError(analysis.ParseError), analysis
	}
	if err := rejectNonQuery(analysis.Document); err != nil {
		return requestError(err), analysis
	}

	validation := graphql.ValidateDocument(e.registry.Schema(), analysis.Document, nil)
	if !validation.IsValid {
		return &Response{Errors: validation.Errors}, analysis
	}
	if analysis.SelectionError != nil {
		return requestError(analysis.SelectionError), analysis
	}
	if errs := checkVariables(analysis.Operation, req.Variables); len(errs) > 0 {
		return &Response{Errors: errs}, analysis
	}

	if meta := gqlrequest.ExecMetaFromContext(ctx); meta != nil {
		meta.Set(analysis.OperationName, analysis.OperationType, analysis.OperationHash)
	}

	if ctx.Err() != nil {
		return &Response{canceled: true}, analysis
	}

	result := graphql.Execute(graphql.ExecuteParams{
		Schema:        *e.registry.Schema(),
		Root:          e.registry.Data(),
		AST:           analysis.Document,
		OperationName: req.OperationName,
		Args:          req.Variables,
		Context:       ctx,
	})
	if ctx.Err() != nil {
		return &Response{canceled: true}, analysis
	}

	if result.Data == nil && requestLevel(result.Errors) {
		// Variable coercion failed inside graphql-go; nothing was executed.
		return &Response{Errors: result.Errors}, analysis
	}

	resp := &Response{executed: true, Errors: result.Errors}
	if data, ok := result.Data.(map[string]interface{}); ok && data != nil {
		resp.Data = orderData(analysis.Operation.SelectionSet, data, newOrderContext(analysis, req.Variables))
	}
	return resp, analysis
}

// rejectNonQuery fails documents that declare mutation or subscription
// operations. The schema has no root type for either.
func rejectNonQuery(doc *ast.Document) error {
	if doc == nil {
		return nil
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op == nil || op.Operation == ast.OperationTypeQuery {
			continue
		}
		return fmt.Errorf("Schema is not configured for %ss.", op.Operation)
	}
	return nil
}

// requestLevel reports whether errs is non-empty and no error is tied to a
// response path, which is how graphql-go reports failures before execution.
func requestLevel(errs []gqlerrors.FormattedError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if len(e.Path) > 0 {
			return false
		}
	}
	return true
}

func requestError(err error) *Response {
	return &Response{Errors: []gqlerrors.FormattedError{gqlerrors.FormatError(err)}}
}
