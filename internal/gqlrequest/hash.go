package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// operationHash identifies an operation independently of whitespace,
// comments, and other operations in the same document.
func operationHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) string {
	definitions := []ast.Node{op}
	for _, name := range usedFragments(op.SelectionSet, fragments) {
		definitions = append(definitions, fragments[name])
	}
	printed, _ := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	return framedSHA256(printed, effectiveOperationName(op))
}

// usedFragments returns the sorted names of the known fragments reachable
// from root.
func usedFragments(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	seen := map[string]bool{}
	var walk func(*ast.SelectionSet)
	walk = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				walk(sel.SelectionSet)
			case *ast.InlineFragment:
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if sel.Name == nil || seen[sel.Name.Value] {
					continue
				}
				if fragment, ok := fragments[sel.Name.Value]; ok {
					seen[sel.Name.Value] = true
					walk(fragment.SelectionSet)
				}
			}
		}
	}
	walk(root)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

func framedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
