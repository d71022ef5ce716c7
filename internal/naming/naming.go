package naming

import (
	"log/slog"
	"strings"

	"github.com/jinzhu/inflection"
)

// Namer maps SQL names to GraphQL names.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{config: cfg, logger: logger}
}

// Singularize converts a plural word to its singular form, preferring
// configured overrides.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// TypeName converts a table name to the GraphQL object type for one row.
// Example: "users" -> "User", "user_profiles" -> "UserProfile"
func (n *Namer) TypeName(tableName string) string {
	return n.validateTypeAndSuffix(toPascalCase(n.Singularize(tableName)))
}

// FieldName converts a column name to a GraphQL field name (camelCase).
// Example: "user_name" -> "userName"
func (n *Namer) FieldName(columnName string) string {
	return n.validateFieldAndSuffix(toCamelCase(columnName))
}

// ListFieldName is the root query field listing every row of a table.
// Example: "users" -> "users", "user_profiles" -> "userProfiles"
func (n *Namer) ListFieldName(tableName string) string {
	return n.validateFieldAndSuffix(toCamelCase(tableName))
}

func (n *Namer) validateTypeAndSuffix(name string) string {
	if isReservedTypeName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

func (n *Namer) validateFieldAndSuffix(name string) string {
	if isReservedFieldName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
