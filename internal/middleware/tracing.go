package middleware

import (
	"log/slog"
	"net/http"

	"users-graphql/internal/gqlrequest"
	"users-graphql/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware opens a graphql.execute span around the GraphQL
// handler and adds the operation identity once the executor has recorded
// it. It must run inside LoggingMiddleware, which attaches the ExecMeta.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := otel.Tracer("users-graphql/graphql").Start(r.Context(), "graphql.execute")
			defer span.End()

			if sc := span.SpanContext(); sc.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", sc.TraceID().String()),
					slog.String("span_id", sc.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			if !span.IsRecording() {
				return
			}
			if name, opType, hash := gqlrequest.ExecMetaFromContext(ctx).Get(); opType != "" {
				span.SetAttributes(
					attribute.String("graphql.operation.name", name),
					attribute.String("graphql.operation.type", opType),
					attribute.String("graphql.document.hash", hash),
				)
			}
		})
	}
}
