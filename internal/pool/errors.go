package pool

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ConfigError reports a connection string or connectivity problem found
// while opening the pool.
type ConfigError struct {
	Kind string // "invalid_dsn" or "connect"
	Err  error
}

const (
	KindInvalidDSN = "invalid_dsn"
	KindConnect    = "connect"
)

func (e *ConfigError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Kind, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// postgres SQLSTATE class 08: connection exception.
const pqConnectionExceptionClass = "08"

// IsBrokenSession reports whether err means the session that produced it
// can no longer be reused.
func IsBrokenSession(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pqConnectionExceptionClass
	}
	return false
}
