package gqlrequest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis is a parsed request with its operation selected.
type Analysis struct {
	Request Request

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string
	OperationHash string

	ParseError     error
	SelectionError error
}

// Analyze parses the request document and selects the operation to run.
// Errors are recorded on the result rather than returned so callers can
// report them in whichever order they validate.
func Analyze(req Request) *Analysis {
	analysis := &Analysis{
		Request:   req,
		Fragments: map[string]*ast.FragmentDefinition{},
	}

	if strings.TrimSpace(req.Query) == "" {
		analysis.ParseError = errors.New("Must provide an operation.")
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(req.Query),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}

	analysis.Document = doc
	analysis.Fragments = buildFragmentMap(doc)

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = op.Operation

	analysis.OperationHash = operationHash(op, analysis.Fragments)
	return analysis
}

func buildFragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	if doc == nil {
		return fragments
	}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	operations := make([]*ast.OperationDefinition, 0)
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("Unknown operation named %q.", operationName)
	}

	switch len(operations) {
	case 1:
		return operations[0], nil
	case 0:
		return nil, errors.New("Must provide an operation.")
	default:
		return nil, errors.New("Must provide operation name if query contains multiple operations.")
	}
}
