// Package resolver implements the field resolvers of the query root.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"users-graphql/internal/logging"
	"users-graphql/internal/model"
	"users-graphql/internal/pool"
	"users-graphql/internal/rowmap"
	"users-graphql/internal/schema"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
)

var errMissingPool = errors.New("internal error: database pool is not available")

// UsersQuery builds the statement behind the users field.
func UsersQuery() (string, error) {
	query, _, err := sq.Select(rowmap.UserShape.Names()...).From(model.UsersTable).ToSql()
	return query, err
}

// Users resolves the users root field.
type Users struct {
	query string
}

// NewUsers prepares the users resolver.
func NewUsers() (*Users, error) {
	query, err := UsersQuery()
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}
	return &Users{query: query}, nil
}

type fetchResult struct {
	users []model.User
	err   error
}

// Resolve starts the query and returns a thunk, letting graphql-go resolve
// sibling fields while the database round trip is in flight.
func (u *Users) Resolve(p graphql.ResolveParams) (interface{}, error) {
	data, ok := schema.DataFrom(p.Source)
	if !ok {
		data, ok = schema.DataFromContext(p.Context)
	}
	if !ok || data.Pool == nil {
		return nil, errMissingPool
	}

	ctx := p.Context
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan fetchResult, 1)
	go func() {
		users, err := u.fetch(ctx, data.Pool)
		done <- fetchResult{users: users, err: err}
	}()

	return func() (interface{}, error) {
		res := <-done
		if res.err != nil {
			return nil, res.err
		}
		return res.users, nil
	}, nil
}

func (u *Users) fetch(ctx context.Context, p *pool.Pool) (users []model.User, err error) {
	ctx, span := startResolverSpan(ctx, "graphql.resolve.users",
		attribute.String("db.query.text", u.query),
		attribute.String("db.collection.name", model.UsersTable),
	)
	defer func() {
		finishResolverSpan(span, err, len(users))
		span.End()
	}()

	h, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { h.Release(err) }()

	rows, err := h.QueryContext(ctx, u.query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model.UsersTable, err)
	}
	users, err = rowmap.Users(rows)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("users resolved", slog.Int("rows", len(users)))
	return users, nil
}
