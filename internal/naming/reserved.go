package naming

import "strings"

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that should not be used as type names.
var graphqlReservedTypeWords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	// Built-in and server-defined scalars
	"int":     true,
	"float":   true,
	"string":  true,
	"boolean": true,
	"id":      true,
	"upload":  true,

	"true":  true,
	"false": true,
	"null":  true,
}

func isReservedTypeName(name string) bool {
	lowerName := strings.ToLower(name)
	return strings.HasPrefix(lowerName, "__") || graphqlReservedTypeWords[lowerName]
}

func isReservedFieldName(name string) bool {
	return strings.HasPrefix(name, "__")
}
