// Package schema builds the GraphQL type system served by the endpoint.
package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"users-graphql/internal/model"
	"users-graphql/internal/naming"
	"users-graphql/internal/rowmap"
	"users-graphql/internal/scalars"

	"github.com/graphql-go/graphql"
)

// Resolvers supplies the resolve functions for root query fields.
type Resolvers struct {
	Users graphql.FieldResolveFn
}

// Option customizes schema construction.
type Option func(*options)

type options struct {
	namer  *naming.Namer
	logger *slog.Logger
}

// WithLogger sets the logger used while building the schema.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Registry is the immutable schema plus the shared data handed to resolvers.
// It is built once and safe for concurrent use.
type Registry struct {
	schema    graphql.Schema
	data      *Data
	userType  *graphql.Object
	listField string
}

// New builds the schema. Mutation and subscription roots are left unset:
// GraphQL rejects object types without fields, so an empty root cannot be
// declared and both operation kinds fail validation instead.
func New(data *Data, resolvers Resolvers, opts ...Option) (*Registry, error) {
	if resolvers.Users == nil {
		return nil, errors.New("schema: users resolver is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.namer == nil {
		o.namer = naming.New(naming.DefaultConfig(), o.logger)
	}
	if data == nil {
		data = &Data{}
	}

	userType := buildRowType(o.namer, model.UsersTable, rowmap.UserShape)
	listField := o.namer.ListFieldName(model.UsersTable)

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			listField: &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
				Description: fmt.Sprintf("All rows of the %s table, in database order.", model.UsersTable),
				Resolve:     resolvers.Users,
			},
		},
	})

	s, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
		Types: []graphql.Type{scalars.Upload()},
	})
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	o.logger.Debug("schema built",
		slog.String("type", userType.Name()),
		slog.String("query_field", listField),
	)

	return &Registry{schema: s, data: data, userType: userType, listField: listField}, nil
}

func buildRowType(namer *naming.Namer, table string, shape rowmap.Shape) *graphql.Object {
	fields := graphql.Fields{}
	for _, col := range shape {
		fields[namer.FieldName(col.Name)] = &graphql.Field{
			Type:    graphql.NewNonNull(scalarFor(col.Kind)),
			Resolve: columnResolver(col.Name),
		}
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        namer.TypeName(table),
		Description: fmt.Sprintf("A row of the %s table.", table),
		Fields:      fields,
	})
}

func scalarFor(kind rowmap.Kind) *graphql.Scalar {
	switch kind {
	case rowmap.KindInt32:
		return graphql.Int
	default:
		return graphql.String
	}
}

func columnResolver(column string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		var user model.User
		switch src := p.Source.(type) {
		case model.User:
			user = src
		case *model.User:
			if src == nil {
				return nil, nil
			}
			user = *src
		default:
			return nil, fmt.Errorf("unexpected source %T for column %s", p.Source, column)
		}
		v, _ := user.Column(column)
		return v, nil
	}
}

// Schema returns the graphql-go schema.
func (r *Registry) Schema() *graphql.Schema {
	return &r.schema
}

// Data returns the shared data passed to resolvers.
func (r *Registry) Data() *Data {
	return r.data
}

// UserType returns the object type for users rows.
func (r *Registry) UserType() *graphql.Object {
	return r.userType
}

// ListFieldName is the root field that lists users.
func (r *Registry) ListFieldName() string {
	return r.listField
}
