// Package pool bounds the number of concurrent database sessions and lends
// them out as scoped handles.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxConns is the session limit used when none is configured.
const DefaultMaxConns = 5

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("pool: closed")

// Rows is the cursor returned by Handle.QueryContext. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
}

// AcquireObserver is notified after every acquisition attempt.
type AcquireObserver func(ctx context.Context, wait time.Duration, err error)

// Option customizes a Pool.
type Option func(*Pool)

// WithAcquireObserver registers fn to observe acquisition latency.
func WithAcquireObserver(fn AcquireObserver) Option {
	return func(p *Pool) { p.observe = fn }
}

// Pool lends at most MaxConns sessions at a time. It is safe for concurrent use.
type Pool struct {
	db       *sql.DB
	maxConns int
	observe  AcquireObserver

	inUse     atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	onClose   []func() error
}

// New wraps db and caps it at maxConns open sessions. A non-positive
// maxConns selects DefaultMaxConns.
func New(db *sql.DB, maxConns int, opts ...Option) *Pool {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	db.SetMaxOpenConns(maxConns)
	p := &Pool{db: db, maxConns: maxConns}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire blocks until a session is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	conn, err := p.db.Conn(ctx)
	if p.observe != nil {
		p.observe(ctx, time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || p.closed.Load() {
			return nil, ErrPoolClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("acquire session: %w", ctxErr)
		}
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	p.inUse.Add(1)
	return &Handle{conn: conn, pool: p}, nil
}

// Ping verifies that a session can reach the database.
func (p *Pool) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	return p.db.PingContext(ctx)
}

// Stats is a point-in-time view of pool usage.
type Stats struct {
	MaxConns     int
	Open         int
	InUse        int
	Idle         int
	WaitCount    int64
	WaitDuration time.Duration
}

// Stats reports current pool usage.
func (p *Pool) Stats() Stats {
	s := p.db.Stats()
	return Stats{
		MaxConns:     p.maxConns,
		Open:         s.OpenConnections,
		InUse:        int(p.inUse.Load()),
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// MaxConns returns the session limit.
func (p *Pool) MaxConns() int {
	return p.maxConns
}

// Close rejects new acquisitions and closes the underlying handle. Sessions
// still on loan are closed as they are released. Close is idempotent.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		var errs []error
		for i := len(p.onClose) - 1; i >= 0; i-- {
			if err := p.onClose[i](); err != nil {
				errs = append(errs, err)
			}
		}
		if err := p.db.Close(); err != nil {
			errs = append(errs, err)
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Handle is a session borrowed from a Pool. Callers must Release it exactly
// once; extra calls are ignored.
type Handle struct {
	conn *sql.Conn
	pool *Pool
	once sync.Once
}

// QueryContext runs query on the borrowed session.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

// Release returns the session to the pool. If err shows the session is
// broken, the session is discarded and a fresh one is opened on demand.
func (h *Handle) Release(err error) {
	h.once.Do(func() {
		if IsBrokenSession(err) {
			_ = h.conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = h.conn.Close()
		h.pool.inUse.Add(-1)
	})
}
