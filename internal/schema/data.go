package schema

import (
	"context"

	"users-graphql/internal/pool"
)

// Data is the shared state resolvers read during execution. The executor
// passes it as the root value; routes that cannot set a root value attach
// it to the request context instead.
type Data struct {
	Pool *pool.Pool
}

// DataFrom returns the shared data carried by a resolver source.
func DataFrom(source any) (*Data, bool) {
	d, ok := source.(*Data)
	return d, ok && d != nil
}

type dataKey struct{}

// WithData attaches shared data to ctx.
func WithData(ctx context.Context, d *Data) context.Context {
	return context.WithValue(ctx, dataKey{}, d)
}

// DataFromContext returns the shared data attached with WithData.
func DataFromContext(ctx context.Context) (*Data, bool) {
	if ctx == nil {
		return nil, false
	}
	d, ok := ctx.Value(dataKey{}).(*Data)
	return d, ok && d != nil
}
