package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds the request-level instruments recorded by the executor.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	acquireDuration metric.Float64Histogram
}

// InitGraphQLMetrics creates the instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("users-graphql")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of GraphQL requests in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	acquireDuration, err := meter.Float64Histogram(
		"db.pool.acquire.duration",
		metric.WithDescription("Time spent waiting for a database session"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acquire duration histogram: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		acquireDuration: acquireDuration,
	}, nil
}

// RecordRequest records one finished request. A nil receiver is a no-op.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, errorCount int, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("graphql.operation.type", operationType),
		attribute.Bool("graphql.has_errors", errorCount > 0),
	)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if errorCount > 0 {
		m.errorCounter.Add(ctx, int64(errorCount), metric.WithAttributes(
			attribute.String("graphql.operation.type", operationType),
		))
	}
}

// RecordAcquire records how long a caller waited for a pool session.
func (m *GraphQLMetrics) RecordAcquire(ctx context.Context, wait time.Duration, err error) {
	if m == nil {
		return
	}
	m.acquireDuration.Record(ctx, float64(wait.Microseconds())/1000,
		metric.WithAttributes(attribute.Bool("db.pool.acquired", err == nil)))
}

// IncrementActiveRequests marks a request as in flight.
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests marks a request as finished.
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}
