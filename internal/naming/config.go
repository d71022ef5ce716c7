// Package naming converts SQL table and column names into GraphQL type and
// field names.
package naming

// Config holds naming customization options
type Config struct {
	// SingularOverrides maps a table name to the singular used for its type.
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns the config with no overrides.
func DefaultConfig() Config {
	return Config{SingularOverrides: make(map[string]string)}
}
