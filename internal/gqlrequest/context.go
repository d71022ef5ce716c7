package gqlrequest

import (
	"context"
	"sync"
)

type execMetaContextKey struct{}

// ExecMeta records what the executor ran for a request, so outer layers
// like request logging can report it after the handler returns.
type ExecMeta struct {
	mu            sync.Mutex
	operationName string
	operationType string
	operationHash string
}

// Set stores the executed operation's identity.
func (m *ExecMeta) Set(name, opType, hash string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationName = name
	m.operationType = opType
	m.operationHash = hash
}

// Get returns the recorded operation name, type and hash.
func (m *ExecMeta) Get() (name, opType, hash string) {
	if m == nil {
		return "", "", ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operationName, m.operationType, m.operationHash
}

// WithExecMeta attaches an empty ExecMeta to ctx and returns both.
func WithExecMeta(ctx context.Context) (context.Context, *ExecMeta) {
	if ctx == nil {
		ctx = context.Background()
	}
	meta := &ExecMeta{}
	return context.WithValue(ctx, execMetaContextKey{}, meta), meta
}

// ExecMetaFromContext returns the ExecMeta attached by WithExecMeta, or nil.
func ExecMetaFromContext(ctx context.Context) *ExecMeta {
	if ctx == nil {
		return nil
	}
	meta, _ := ctx.Value(execMetaContextKey{}).(*ExecMeta)
	return meta
}
