package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment override, e.g. USERSGQL_SERVER_PORT.
const EnvPrefix = "USERSGQL"

// ErrMissingDatabaseURL is returned when no connection string was supplied.
var ErrMissingDatabaseURL = errors.New(DatabaseURLEnv + " is not set")

// LoadFlags loads configuration using an already parsed flag set.
// Precedence is flags > env > file > defaults. url_file and the password
// prompt only fill in what the other sources left empty.
func LoadFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	cfgPath, _ := flags.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("users-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/users-graphql/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The bare variable wins over the prefixed one.
	if err := v.BindEnv("database.url", DatabaseURLEnv, EnvPrefix+"_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", DatabaseURLEnv, err)
	}

	bindChangedFlagsToViper(flags, v)

	if v.GetString("database.url") == "" && v.GetString("database.url_file") != "" {
		raw, err := readSecretFile(v.GetString("database.url_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database url file: %w", err)
		}
		v.Set("database.url", raw)
	}

	if v.GetBool("database.password_prompt") && v.GetString("database.url") != "" {
		current := DatabaseConfig{URL: v.GetString("database.url")}
		if !current.HasPassword() {
			pwd, err := promptPassword()
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			withPwd, err := withPassword(current.URL, pwd)
			if err != nil {
				return nil, err
			}
			v.Set("database.url", withPwd)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Visit(func(f *pflag.Flag) {
		if !strings.Contains(f.Name, ".") {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "int64":
			val, _ := flags.GetInt64(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := flags.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags registers every configuration flag on fs using canonical
// dotted snake_case keys. Calling it twice on the same set is a no-op.
func DefineFlags(fs *pflag.FlagSet) {
	if fs.Lookup("config") != nil {
		return
	}

	fs.StringP("config", "c", "", "Config file path")

	fs.String("database.url", "", "Database connection string (overrides "+DatabaseURLEnv+")")
	fs.String("database.url_file", "", "Path to file containing the connection string (use @- for stdin)")
	fs.Bool("database.password_prompt", false, "Prompt for the database password when the URL has none")
	fs.Int("database.max_connections", 0, "Maximum concurrent database sessions")
	fs.Int("database.max_idle_connections", 0, "Maximum idle database sessions")
	fs.Duration("database.conn_max_lifetime", 0, "Session max lifetime (e.g. 5m)")
	fs.Duration("database.connect_timeout", 0, "Max time to wait for the database on startup (0 = fail immediately)")
	fs.Duration("database.connect_retry_interval", 0, "Initial interval between connection retries")

	fs.String("server.engine", "", "HTTP host library (std, gin)")
	fs.String("server.host", "", "Bind address")
	fs.Int("server.port", 0, "HTTP server port")
	fs.Int("server.max_upload_files", 0, "Maximum files per multipart request")
	fs.Int64("server.max_body_bytes", 0, "Maximum request body size in bytes")
	fs.Bool("server.graphiql_enabled", false, "Enable GraphiQL on /graphql")
	fs.Duration("server.read_timeout", 0, "HTTP server read timeout")
	fs.Duration("server.write_timeout", 0, "HTTP server write timeout")
	fs.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
	fs.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
	fs.Duration("server.health_check_timeout", 0, "Health check timeout")
	fs.Bool("server.cors_enabled", false, "Enable CORS")
	fs.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins")
	fs.StringSlice("server.cors_allowed_methods", nil, "Allowed CORS methods")
	fs.StringSlice("server.cors_allowed_headers", nil, "Allowed CORS headers")
	fs.StringSlice("server.cors_expose_headers", nil, "CORS headers exposed to the browser")
	fs.Bool("server.cors_allow_credentials", false, "Allow credentials in CORS requests")
	fs.Int("server.cors_max_age", 0, "CORS preflight cache duration (seconds)")
	fs.Bool("server.rate_limit_enabled", false, "Enable the global request rate limit")
	fs.Float64("server.rate_limit_rps", 0, "Sustained requests per second")
	fs.Int("server.rate_limit_burst", 0, "Maximum burst size")

	fs.String("observability.service_name", "", "Service name for observability")
	fs.String("observability.environment", "", "Environment name (dev, staging, prod)")
	fs.Bool("observability.metrics_enabled", false, "Enable Prometheus metrics on /metrics")
	fs.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint (e.g. localhost:4317)")
	fs.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use insecure OTLP connection")
	fs.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
	fs.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.url_file", "")
	v.SetDefault("database.password_prompt", false)
	v.SetDefault("database.max_connections", 5)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_timeout", time.Duration(0))
	v.SetDefault("database.connect_retry_interval", 2*time.Second)

	v.SetDefault("server.engine", EngineStd)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_upload_files", 3)
	v.SetDefault("server.max_body_bytes", int64(32<<20))
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type"})
	v.SetDefault("server.cors_expose_headers", []string{})
	v.SetDefault("server.cors_allow_credentials", false)
	v.SetDefault("server.cors_max_age", 86400)
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)

	v.SetDefault("observability.service_name", "users-graphql")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)
	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
