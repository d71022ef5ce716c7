package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Dialect identifies the SQL backend selected by the connection string scheme.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DatabaseURLEnv is the environment variable that carries the connection string.
const DatabaseURLEnv = "DATABASE_URL"

// Dialect returns the backend named by the URL scheme.
func (d DatabaseConfig) Dialect() (Dialect, error) {
	u, err := parseDatabaseURL(d.URL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// RedactedURL returns the connection string with any password masked, for logs.
func (d DatabaseConfig) RedactedURL() string {
	u, err := parseDatabaseURL(d.URL)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

// HasPassword reports whether the connection string already carries a password.
func (d DatabaseConfig) HasPassword() bool {
	u, err := parseDatabaseURL(d.URL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}

func parseDatabaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("connection string is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("connection string must look like scheme://user@host/database")
	}
	// lib/pq takes a socket directory from ?host= when the authority is empty.
	if u.Host == "" && strings.EqualFold(u.Scheme, "mysql") {
		return nil, fmt.Errorf("mysql connection string needs a host")
	}
	return u, nil
}

// withPassword returns rawURL with its userinfo password replaced.
func withPassword(rawURL, password string) (string, error) {
	u, err := parseDatabaseURL(rawURL)
	if err != nil {
		return "", err
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
