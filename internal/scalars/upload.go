// Package scalars defines the custom GraphQL scalars exposed by the schema.
package scalars

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// File is an uploaded file part of a multipart GraphQL request.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// Upload is the scalar for multipart file uploads. Values only arrive
// through request variables, never as literals or outputs.
func Upload() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Upload",
		Description: "A file part of a multipart request following the GraphQL multipart request convention.",
		Serialize: func(value interface{}) interface{} {
			if f, ok := value.(*File); ok && f != nil {
				return f.Filename
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case *File:
				return v
			case File:
				return &v
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			return nil
		},
	})
}
