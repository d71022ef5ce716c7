package executor

import (
	"sort"

	"users-graphql/internal/gqlrequest"

	"github.com/graphql-go/graphql/language/ast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// orderContext carries what is needed to re-walk the operation's selection
// sets: fragment definitions and the values deciding @skip and @include.
type orderContext struct {
	fragments map[string]*ast.FragmentDefinition
	variables map[string]any
	defaults  map[string]ast.Value
}

func newOrderContext(analysis *gqlrequest.Analysis, variables map[string]any) *orderContext {
	oc := &orderContext{
		fragments: analysis.Fragments,
		variables: variables,
		defaults:  map[string]ast.Value{},
	}
	if analysis.Operation != nil {
		for _, def := range analysis.Operation.VariableDefinitions {
			if def == nil || def.Variable == nil || def.Variable.Name == nil || def.DefaultValue == nil {
				continue
			}
			oc.defaults[def.Variable.Name.Value] = def.DefaultValue
		}
	}
	return oc
}

// fieldGroup is the response keys of one selection level in first-seen
// order, with every selection set merged under each key.
type fieldGroup struct {
	keys []string
	sets map[string][]*ast.SelectionSet
}

func (g *fieldGroup) add(key string, set *ast.SelectionSet) {
	if _, ok := g.sets[key]; !ok {
		g.keys = append(g.keys, key)
		g.sets[key] = nil
	}
	if set != nil {
		g.sets[key] = append(g.sets[key], set)
	}
}

// orderData rebuilds the executor's unordered result so object keys follow
// the order fields appear in the request.
func orderData(set *ast.SelectionSet, data map[string]interface{}, oc *orderContext) *orderedmap.OrderedMap[string, any] {
	return oc.orderObject([]*ast.SelectionSet{set}, data)
}

func (oc *orderContext) orderObject(sets []*ast.SelectionSet, obj map[string]interface{}) *orderedmap.OrderedMap[string, any] {
	group := &fieldGroup{sets: map[string][]*ast.SelectionSet{}}
	for _, set := range sets {
		oc.collect(set, map[string]bool{}, group)
	}

	out := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(obj)))
	for _, key := range group.keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		out.Set(key, oc.orderValue(group.sets[key], v))
	}

	if out.Len() < len(obj) {
		rest := make([]string, 0, len(obj)-out.Len())
		for key := range obj {
			if _, ok := out.Get(key); !ok {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			out.Set(key, obj[key])
		}
	}
	return out
}

func (oc *orderContext) orderValue(sets []*ast.SelectionSet, v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		if value == nil {
			return nil
		}
		return oc.orderObject(sets, value)
	case []interface{}:
		if value == nil {
			return nil
		}
		items := make([]interface{}, len(value))
		for i, item := range value {
			items[i] = oc.orderValue(sets, item)
		}
		return items
	default:
		return v
	}
}

func (oc *orderContext) collect(set *ast.SelectionSet, visited map[string]bool, group *fieldGroup) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == nil || !oc.included(sel.Directives) {
				continue
			}
			key := sel.Name.Value
			if sel.Alias != nil && sel.Alias.Value != "" {
				key = sel.Alias.Value
			}
			group.add(key, sel.SelectionSet)
		case *ast.InlineFragment:
			if !oc.included(sel.Directives) {
				continue
			}
			oc.collect(sel.SelectionSet, visited, group)
		case *ast.FragmentSpread:
			if sel.Name == nil || !oc.included(sel.Directives) {
				continue
			}
			name := sel.Name.Value
			if visited[name] {
				continue
			}
			visited[name] = true
			if frag := oc.fragments[name]; frag != nil {
				oc.collect(frag.SelectionSet, visited, group)
			}
		}
	}
}

func (oc *orderContext) included(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d == nil || d.Name == nil {
			continue
		}
		switch d.Name.Value {
		case "skip":
			if v, ok := oc.ifArgument(d); ok && v {
				return false
			}
		case "include":
			if v, ok := oc.ifArgument(d); ok && !v {
				return false
			}
		}
	}
	return true
}

func (oc *orderContext) ifArgument(d *ast.Directive) (bool, bool) {
	for _, arg := range d.Arguments {
		if arg == nil || arg.Name == nil || arg.Name.Value != "if" {
			continue
		}
		return oc.boolValue(arg.Value)
	}
	return false, false
}

func (oc *orderContext) boolValue(v ast.Value) (bool, bool) {
	switch value := v.(type) {
	case *ast.BooleanValue:
		return value.Value, true
	case *ast.Variable:
		if value.Name == nil {
			return false, false
		}
		if b, ok := oc.variables[value.Name.Value].(bool); ok {
			return b, true
		}
		if def, ok := oc.defaults[value.Name.Value]; ok {
			return oc.boolValue(def)
		}
	}
	return false, false
}
