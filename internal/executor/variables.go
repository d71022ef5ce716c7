package executor

import (
	"encoding/json"
	"fmt"
	"math"

	"users-graphql/internal/scalars"

	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// checkVariables rejects supplied values whose kind does not match the
// declared type. graphql-go coerces loosely (a string becomes a Boolean), so
// this runs before execution and reports failures the way validation does.
func checkVariables(op *ast.OperationDefinition, values map[string]any) []gqlerrors.FormattedError {
	if op == nil {
		return nil
	}
	var errs []gqlerrors.FormattedError
	for _, def := range op.VariableDefinitions {
		if def == nil || def.Variable == nil || def.Variable.Name == nil || def.Type == nil {
			continue
		}
		name := def.Variable.Name.Value
		value, supplied := values[name]

		if !supplied || value == nil {
			if _, required := def.Type.(*ast.NonNull); required && def.DefaultValue == nil {
				errs = append(errs, variableError(def, fmt.Sprintf(
					`Variable "$%s" of required type "%v" was not provided.`, name, printer.Print(def.Type))))
			}
			continue
		}

		if !accepts(def.Type, value) {
			encoded, _ := json.Marshal(value)
			errs = append(errs, variableError(def, fmt.Sprintf(
				`Variable "$%s" got invalid value %s.`+"\n"+`Expected type "%v".`, name, encoded, printer.Print(def.Type))))
		}
	}
	return errs
}

func variableError(def *ast.VariableDefinition, message string) gqlerrors.FormattedError {
	return gqlerrors.FormatError(gqlerrors.NewError(message, []ast.Node{def}, "", nil, []int{}, nil))
}

// accepts reports whether value fits t. Unknown named types are left to
// graphql-go.
func accepts(t ast.Type, value any) bool {
	switch typ := t.(type) {
	case *ast.NonNull:
		return value != nil && accepts(typ.Type, value)
	case *ast.List:
		if value == nil {
			return true
		}
		items, ok := value.([]any)
		if !ok {
			// A single value is coerced to a one-item list.
			return accepts(typ.Type, value)
		}
		for _, item := range items {
			if !accepts(typ.Type, item) {
				return false
			}
		}
		return true
	case *ast.Named:
		if value == nil {
			return true
		}
		if typ.Name == nil {
			return true
		}
		return acceptsScalar(typ.Name.Value, value)
	}
	return true
}

func acceptsScalar(name string, value any) bool {
	switch name {
	case "Int":
		f, ok := number(value)
		return ok && f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32
	case "Float":
		_, ok := number(value)
		return ok
	case "String":
		_, ok := value.(string)
		return ok
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "ID":
		if _, ok := value.(string); ok {
			return true
		}
		f, ok := number(value)
		return ok && f == math.Trunc(f)
	case "Upload":
		switch value.(type) {
		case *scalars.File, scalars.File:
			return true
		}
		return false
	default:
		return true
	}
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
