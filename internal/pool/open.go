package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"users-graphql/internal/logging"

	"github.com/XSAM/otelsql"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config describes how to open a pool from a connection string.
type Config struct {
	URL             string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the startup retry loop; zero means a single attempt.
	ConnectTimeout time.Duration
	RetryInterval  time.Duration

	Tracing bool
	Metrics bool

	Logger  *logging.Logger
	Options []Option
}

// Target is the driver name and driver-specific DSN derived from a URL.
type Target struct {
	Driver string
	DSN    string
	System attribute.KeyValue
}

// ResolveTarget maps a connection URL onto a registered database/sql driver.
// postgres:// and postgresql:// use lib/pq; mysql:// uses go-sql-driver/mysql.
func ResolveTarget(rawURL string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Target{}, &ConfigError{Kind: KindInvalidDSN, Err: err}
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		dsn, err := pq.ParseURL(u.String())
		if err != nil {
			return Target{}, &ConfigError{Kind: KindInvalidDSN, Err: err}
		}
		return Target{Driver: "postgres", DSN: dsn, System: semconv.DBSystemPostgreSQL}, nil
	case "mysql":
		dsn, err := mysqlDSN(u)
		if err != nil {
			return Target{}, &ConfigError{Kind: KindInvalidDSN, Err: err}
		}
		return Target{Driver: "mysql", DSN: dsn, System: semconv.DBSystemMySQL}, nil
	case "":
		return Target{}, &ConfigError{Kind: KindInvalidDSN, Err: fmt.Errorf("connection string has no scheme")}
	default:
		return Target{}, &ConfigError{Kind: KindInvalidDSN, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
}

func mysqlDSN(u *url.URL) (string, error) {
	if u.Host == "" {
		return "", fmt.Errorf("mysql connection string has no host")
	}
	var b strings.Builder
	if u.User != nil {
		b.WriteString(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			b.WriteByte(':')
			b.WriteString(pwd)
		}
		b.WriteByte('@')
	}
	fmt.Fprintf(&b, "tcp(%s)/%s", u.Host, strings.TrimPrefix(u.Path, "/"))
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}

	cfg, err := mysql.ParseDSN(b.String())
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// Open resolves the connection string, opens the database handle and waits
// until it answers a ping.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	target, err := ResolveTarget(cfg.URL)
	if err != nil {
		return nil, err
	}

	var (
		db        *sql.DB
		onClose   []func() error
		instrumented = cfg.Tracing || cfg.Metrics
	)
	if instrumented {
		opts := []otelsql.Option{otelsql.WithAttributes(target.System)}
		if cfg.Tracing {
			opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		}
		db, err = otelsql.Open(target.Driver, target.DSN, opts...)
	} else {
		db, err = sql.Open(target.Driver, target.DSN)
	}
	if err != nil {
		return nil, &ConfigError{Kind: KindInvalidDSN, Err: err}
	}

	if cfg.Metrics {
		reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(target.System))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		} else {
			onClose = append(onClose, reg.Unregister)
		}
	}

	p := New(db, cfg.MaxConns, cfg.Options...)
	p.onClose = onClose
	db.SetMaxIdleConns(min(cfg.MaxIdleConns, p.maxConns))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForDatabase(ctx, logger, db, cfg.ConnectTimeout, cfg.RetryInterval); err != nil {
		_ = p.Close()
		return nil, &ConfigError{Kind: KindConnect, Err: err}
	}

	logger.Info("connected to database",
		slog.String("driver", target.Driver),
		slog.Int("pool_max_conns", p.maxConns),
		slog.Int("pool_max_idle", min(cfg.MaxIdleConns, p.maxConns)),
		slog.Duration("pool_max_lifetime", cfg.ConnMaxLifetime),
		slog.Bool("instrumented", instrumented),
	)
	return p, nil
}

func waitForDatabase(ctx context.Context, logger *logging.Logger, db *sql.DB, timeout, interval time.Duration) error {
	if timeout <= 0 {
		return db.PingContext(ctx)
	}
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, 30*time.Second)
	}
}
