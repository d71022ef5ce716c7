package schema

import (
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
)

var builtinScalars = map[string]bool{
	"Int": true, "Float": true, "String": true, "Boolean": true, "ID": true,
}

// SDL renders the schema in GraphQL schema definition language. Custom
// scalars come first, then object types, each group sorted by name.
func (r *Registry) SDL() string {
	var scalarNames, objectNames []string
	for name, t := range r.schema.TypeMap() {
		if strings.HasPrefix(name, "__") {
			continue
		}
		switch t.(type) {
		case *graphql.Scalar:
			if !builtinScalars[name] {
				scalarNames = append(scalarNames, name)
			}
		case *graphql.Object:
			objectNames = append(objectNames, name)
		}
	}
	sort.Strings(scalarNames)
	sort.Strings(objectNames)

	var blocks []string
	for _, name := range scalarNames {
		t := r.schema.Type(name)
		blocks = append(blocks, describe(t.Description(), "")+"scalar "+name)
	}
	for _, name := range objectNames {
		obj := r.schema.Type(name).(*graphql.Object)
		blocks = append(blocks, printObject(obj))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func printObject(obj *graphql.Object) string {
	fields := obj.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(describe(obj.Description(), ""))
	b.WriteString("type " + obj.Name() + " {\n")
	for _, name := range names {
		f := fields[name]
		b.WriteString(describe(f.Description, "  "))
		b.WriteString("  " + name + ": " + f.Type.String() + "\n")
	}
	b.WriteString("}")
	return b.String()
}

func describe(text, indent string) string {
	if text == "" {
		return ""
	}
	return indent + `"""` + text + `"""` + "\n"
}
