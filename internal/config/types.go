package config

import "time"

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DatabaseConfig holds the connection string and pool parameters.
type DatabaseConfig struct {
	// URL is the connection string, normally supplied through DATABASE_URL.
	URL            string `mapstructure:"url"`
	URLFile        string `mapstructure:"url_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`

	MaxConnections       int           `mapstructure:"max_connections"`
	MaxIdleConnections   int           `mapstructure:"max_idle_connections"`
	ConnMaxLifetime      time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	ConnectRetryInterval time.Duration `mapstructure:"connect_retry_interval"`
}

// Engine names accepted by server.engine.
const (
	EngineStd = "std"
	EngineGin = "gin"
)

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Engine             string        `mapstructure:"engine"` // "std" or "gin"
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	MaxUploadFiles     int           `mapstructure:"max_upload_files"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	GraphiQLEnabled    bool          `mapstructure:"graphiql_enabled"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	CORSEnabled          bool     `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`

	RateLimitEnabled bool    `mapstructure:"rate_limit_enabled"`
	RateLimitRPS     float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int     `mapstructure:"rate_limit_burst"`
}

// ListenAddr returns the host:port pair the server binds to.
func (s ServerConfig) ListenAddr() string {
	return joinHostPort(s.Host, s.Port)
}

// ExplorerURL returns the URL announced at startup for the query explorer.
// Wildcard bind addresses are shown as localhost.
func (s ServerConfig) ExplorerURL() string {
	host := s.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + joinHostPort(host, s.Port) + "/"
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"`
}

// ObservabilityConfig holds observability parameters. Everything beyond
// local logging is off unless enabled explicitly.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`
	OTLP             OTLPConfig    `mapstructure:"otlp"`
}

// InstrumentationEnabled reports whether any OpenTelemetry signal is on.
func (o ObservabilityConfig) InstrumentationEnabled() bool {
	return o.MetricsEnabled || o.TracingEnabled
}

// OTLPConfig holds OTLP exporter configuration shared by traces and logs.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
}
