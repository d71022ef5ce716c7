package pool

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"users-graphql/internal/logging"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T, maxConns int, opts ...Option) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	p := New(db, maxConns, opts...)
	t.Cleanup(func() { _ = p.Close() })
	return p, mock
}

func TestNew_DefaultsMaxConns(t *testing.T) {
	p, _ := newMockPool(t, 0)
	assert.Equal(t, DefaultMaxConns, p.MaxConns())
	assert.Equal(t, DefaultMaxConns, p.Stats().MaxConns)
}

func TestAcquireRelease_TracksInUse(t *testing.T) {
	p, _ := newMockPool(t, 2)
	ctx := context.Background()

	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().InUse)

	h1.Release(nil)
	assert.Equal(t, 1, p.Stats().InUse)
	h2.Release(nil)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestRelease_IsIdempotent(t *testing.T) {
	p, _ := newMockPool(t, 1)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h.Release(nil)
	h.Release(nil)
	h.Release(errors.New("late"))

	assert.Equal(t, 0, p.Stats().InUse)
}

func TestAcquire_BlocksAtCapacity(t *testing.T) {
	p, _ := newMockPool(t, 1)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan *Handle, 1)
	go func() {
		h, err := p.Acquire(ctx)
		if err == nil {
			acquired <- h
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should wait while the only session is on loan")
	case <-time.After(50 * time.Millisecond):
	}

	held.Release(nil)

	select {
	case h := <-acquired:
		h.Release(nil)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting acquire was not served after release")
	}
}

func TestAcquire_CanceledWhileWaiting(t *testing.T) {
	p, _ := newMockPool(t, 1)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	h, err := p.Acquire(ctx)
	assert.Nil(t, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Stats().InUse)
}

func TestAcquire_NeverExceedsMaxConns(t *testing.T) {
	const maxConns = 3
	p, _ := newMockPool(t, maxConns)

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			current++
			peak = max(peak, current)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			h.Release(nil)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, maxConns)
	assert.LessOrEqual(t, p.Stats().Open, maxConns)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestAcquire_AfterClose(t *testing.T) {
	p, mock := newMockPool(t, 1)
	mock.ExpectClose()

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	h, err := p.Acquire(context.Background())
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Ping(context.Background()), ErrPoolClosed)
}

func TestClose_RunsHooksInReverseOrder(t *testing.T) {
	p, mock := newMockPool(t, 1)
	mock.ExpectClose()

	var order []string
	p.onClose = []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("unregister failed") },
	}

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregister failed")
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestRelease_DiscardsBrokenSession(t *testing.T) {
	p, _ := newMockPool(t, 2)
	ctx := context.Background()

	// sqlmock forgets its DSN once every driver conn is closed, so keep a
	// second session open while the first one is discarded.
	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, p.Stats().Open)

	h1.Release(driver.ErrBadConn)
	assert.Equal(t, 1, p.Stats().Open)
	assert.Equal(t, 1, p.Stats().InUse)

	h2.Release(nil)
	assert.Equal(t, 1, p.Stats().Open)
	assert.Equal(t, 1, p.Stats().Idle)

	h3, err := p.Acquire(ctx)
	require.NoError(t, err)
	h3.Release(nil)
}

func TestHandle_QueryContext(t *testing.T) {
	p, mock := newMockPool(t, 1)
	mock.ExpectQuery("SELECT age, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"age", "name"}).AddRow(30, "Ada"))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	rows, err := h.QueryContext(context.Background(), "SELECT age, name FROM users")
	require.NoError(t, err)
	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "name"}, cols)
	require.True(t, rows.Next())
	require.NoError(t, rows.Close())
	h.Release(nil)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireObserver(t *testing.T) {
	var calls int
	var lastErr error
	p, _ := newMockPool(t, 1, WithAcquireObserver(func(_ context.Context, wait time.Duration, err error) {
		calls++
		lastErr = err
		assert.GreaterOrEqual(t, wait, time.Duration(0))
	}))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h.Release(nil)

	assert.Equal(t, 1, calls)
	assert.NoError(t, lastErr)
}

func TestIsBrokenSession(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "driver bad conn", err: driver.ErrBadConn, want: true},
		{name: "wrapped bad conn", err: fmt.Errorf("query: %w", driver.ErrBadConn), want: true},
		{name: "mysql invalid conn", err: mysql.ErrInvalidConn, want: true},
		{name: "postgres connection failure", err: &pq.Error{Code: "08006"}, want: true},
		{name: "postgres undefined table", err: &pq.Error{Code: "42P01"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBrokenSession(tt.err))
		})
	}
}

func TestResolveTarget(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		target, err := ResolveTarget("postgres://app:secret@db:5432/app?sslmode=disable")
		require.NoError(t, err)
		assert.Equal(t, "postgres", target.Driver)
		assert.Contains(t, target.DSN, "host='db'")
		assert.Contains(t, target.DSN, "dbname='app'")
		assert.Contains(t, target.DSN, "sslmode='disable'")
	})

	t.Run("postgresql alias", func(t *testing.T) {
		target, err := ResolveTarget("postgresql://app@db/app")
		require.NoError(t, err)
		assert.Equal(t, "postgres", target.Driver)
	})

	t.Run("postgres unix socket", func(t *testing.T) {
		target, err := ResolveTarget("postgres:///app?host=/var/run/postgresql")
		require.NoError(t, err)
		assert.Equal(t, "postgres", target.Driver)
		assert.Contains(t, target.DSN, "host='/var/run/postgresql'")
	})

	t.Run("mysql", func(t *testing.T) {
		target, err := ResolveTarget("mysql://root:pw@db/app?parseTime=true")
		require.NoError(t, err)
		assert.Equal(t, "mysql", target.Driver)
		assert.True(t, strings.HasPrefix(target.DSN, "root:pw@"), target.DSN)
		assert.Contains(t, target.DSN, "tcp(db:3306)/app")
	})

	for _, raw := range []string{"", "db:5432/app", "sqlite:///tmp/x.db", "mysql:///app", "postgres://%zz"} {
		t.Run("invalid "+raw, func(t *testing.T) {
			_, err := ResolveTarget(raw)
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, KindInvalidDSN, cfgErr.Kind)
		})
	}
}

func TestOpen_InvalidURL(t *testing.T) {
	p, err := Open(context.Background(), Config{URL: "oracle://db/app"})
	assert.Nil(t, p)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, KindInvalidDSN, cfgErr.Kind)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestWaitForDatabase_RetriesUntilReachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	logger := logging.NewLogger(logging.Config{Output: io.Discard})
	err = waitForDatabase(context.Background(), logger, db, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDatabase_GivesUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 10; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	logger := logging.NewLogger(logging.Config{Output: io.Discard})
	err = waitForDatabase(context.Background(), logger, db, 20*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
