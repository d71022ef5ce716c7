package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"users-graphql/internal/gqlrequest"
	"users-graphql/internal/pool"
	"users-graphql/internal/resolver"
	"users-graphql/internal/scalars"
	"users-graphql/internal/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectUsers = "SELECT age, name FROM users"

func newTestExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	p := pool.New(db, pool.DefaultMaxConns)
	t.Cleanup(func() { _ = p.Close() })

	users, err := resolver.NewUsers()
	require.NoError(t, err)
	reg, err := schema.New(&schema.Data{Pool: p}, schema.Resolvers{Users: users.Resolve})
	require.NoError(t, err)
	return New(reg), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("age").OfType("INT4", int64(0)),
		sqlmock.NewColumn("name").OfType("TEXT", ""),
	)
}

func marshal(t *testing.T, resp *Response) string {
	t.Helper()
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(body)
}

func decode(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(marshal(t, resp)), &out))
	return out
}

func TestExecute_EmptyTable(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows())

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { name } }"})

	assert.Equal(t, `{"data":{"users":[]}}`, marshal(t, resp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RowsInDatabaseOrder(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(30), "Ada").AddRow(int64(45), "Linus"))

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { age name } }"})

	assert.Equal(t, `{"data":{"users":[{"age":30,"name":"Ada"},{"age":45,"name":"Linus"}]}}`, marshal(t, resp))
	assert.True(t, resp.Executed())
	assert.NoError(t, resp.Err())
}

func TestExecute_PartialSelection(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(30), "Ada"))

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { name } }"})

	assert.Equal(t, `{"data":{"users":[{"name":"Ada"}]}}`, marshal(t, resp))
}

func TestExecute_KeysFollowSelectionOrder(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(30), "Ada"))

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { name age } }"})

	assert.Equal(t, `{"data":{"users":[{"name":"Ada","age":30}]}}`, marshal(t, resp))
}

func TestExecute_UnknownFieldFailsValidation(t *testing.T) {
	exec, mock := newTestExecutor(t)

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { email } }"})

	out := decode(t, resp)
	assert.NotContains(t, out, "data")
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "email")
	assert.False(t, resp.Executed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_SyntaxError(t *testing.T) {
	exec, _ := newTestExecutor(t)

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { name "})

	out := decode(t, resp)
	assert.NotContains(t, out, "data")
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "Syntax Error")
}

func TestExecute_DatabaseErrorNullsData(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnError(errors.New(`relation "users" does not exist`))

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "{ users { name } }"})

	out := decode(t, resp)
	require.Contains(t, out, "data")
	assert.Nil(t, out["data"])
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "does not exist")
	assert.Equal(t, []interface{}{"users"}, resp.Errors[0].Path)
}

func TestExecute_AliasesAndFragments(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(1), "x"))
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(1), "x"))

	query := `
		query Q {
			b: users { ...Named }
			a: users { ... on User { age } }
		}
		fragment Named on User { name }
	`
	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: query})

	assert.Equal(t, `{"data":{"b":[{"name":"x"}],"a":[{"age":1}]}}`, marshal(t, resp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_SkipAndInclude(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]any
		want      string
	}{
		{name: "default skips name", want: `{"data":{"users":[{"age":30}]}}`},
		{name: "variable keeps name", variables: map[string]any{"hide": false}, want: `{"data":{"users":[{"name":"Ada","age":30}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, mock := newTestExecutor(t)
			mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(30), "Ada"))

			resp := exec.Execute(context.Background(), gqlrequest.Request{
				Query:     `query ($hide: Boolean = true) { users { name @skip(if: $hide) age @include(if: true) } }`,
				Variables: tt.variables,
			})
			assert.Equal(t, tt.want, marshal(t, resp))
		})
	}
}

func TestExecute_OperationSelection(t *testing.T) {
	const doc = `query A { users { name } } query B { users { age } }`

	t.Run("ambiguous", func(t *testing.T) {
		exec, _ := newTestExecutor(t)
		resp := exec.Execute(context.Background(), gqlrequest.Request{Query: doc})
		require.Len(t, resp.Errors, 1)
		assert.Contains(t, resp.Errors[0].Message, "Must provide operation name")
		assert.NotContains(t, decode(t, resp), "data")
	})

	t.Run("unknown name", func(t *testing.T) {
		exec, _ := newTestExecutor(t)
		resp := exec.Execute(context.Background(), gqlrequest.Request{Query: doc, OperationName: "C"})
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, `Unknown operation named "C".`, resp.Errors[0].Message)
	})

	t.Run("named", func(t *testing.T) {
		exec, mock := newTestExecutor(t)
		mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(3), "z"))
		resp := exec.Execute(context.Background(), gqlrequest.Request{Query: doc, OperationName: "B"})
		assert.Equal(t, `{"data":{"users":[{"age":3}]}}`, marshal(t, resp))
	})
}

func TestExecute_RejectsMutation(t *testing.T) {
	exec, mock := newTestExecutor(t)

	resp := exec.Execute(context.Background(), gqlrequest.Request{Query: "mutation { users { name } }"})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Schema is not configured for mutations.", resp.Errors[0].Message)
	assert.NotContains(t, decode(t, resp), "data")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_CanceledContext(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := exec.Execute(ctx, gqlrequest.Request{Query: "{ users { name } }"})

	assert.True(t, resp.Canceled())
	assert.ErrorIs(t, resp.Err(), ErrCanceled)
	assert.Nil(t, resp.Data)
}

func TestExecute_CanceledDuringQuery(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillDelayFor(time.Second).WillReturnRows(userRows())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := exec.Execute(ctx, gqlrequest.Request{Query: "{ users { name } }"})

	assert.True(t, resp.Canceled())
}

func TestExecute_RecordsExecMeta(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows())
	ctx, meta := gqlrequest.WithExecMeta(context.Background())

	exec.Execute(ctx, gqlrequest.Request{Query: "query ListUsers { users { name } }"})

	name, opType, hash := meta.Get()
	assert.Equal(t, "ListUsers", name)
	assert.Equal(t, "query", opType)
	assert.NotEmpty(t, hash)
}

func TestResponse_MarshalErrorsOnly(t *testing.T) {
	resp := requestError(errors.New("Must provide an operation."))
	assert.Equal(t, `{"errors":[{"message":"Must provide an operation.","locations":[]}]}`, marshal(t, resp))
}

func TestExecute_RejectsInvalidVariables(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		variables map[string]any
		message   string
	}{
		{
			name:      "string for boolean",
			query:     `query Q($s: Boolean!) { users @include(if: $s) { name } }`,
			variables: map[string]any{"s": "nope"},
			message:   `Variable "$s" got invalid value "nope".`,
		},
		{
			name:    "missing required",
			query:   `query Q($s: Boolean!) { users @include(if: $s) { name } }`,
			message: `Variable "$s" of required type "Boolean!" was not provided.`,
		},
		{
			name:      "explicit null for required",
			query:     `query Q($s: Boolean!) { users @skip(if: $s) { name } }`,
			variables: map[string]any{"s": nil},
			message:   `Variable "$s" of required type "Boolean!" was not provided.`,
		},
		{
			name:      "number for defaulted boolean",
			query:     `query Q($s: Boolean = false) { users @skip(if: $s) { name } }`,
			variables: map[string]any{"s": float64(1)},
			message:   `Variable "$s" got invalid value 1.`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, mock := newTestExecutor(t)

			resp := exec.Execute(context.Background(), gqlrequest.Request{Query: tt.query, Variables: tt.variables})

			assert.NotContains(t, decode(t, resp), "data")
			assert.False(t, resp.Executed())
			require.Len(t, resp.Errors, 1)
			assert.Contains(t, resp.Errors[0].Message, tt.message)
			assert.NotEmpty(t, resp.Errors[0].Locations)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecute_DefaultedBooleanVariable(t *testing.T) {
	exec, mock := newTestExecutor(t)
	mock.ExpectQuery(selectUsers).WillReturnRows(userRows().AddRow(int64(30), "Ada"))

	resp := exec.Execute(context.Background(), gqlrequest.Request{
		Query:     `query Q($s: Boolean = false) { users @skip(if: $s) { name } }`,
		Variables: map[string]any{"s": nil},
	})

	assert.Equal(t, `{"data":{"users":[{"name":"Ada"}]}}`, marshal(t, resp))
}

func parseOperation(t *testing.T, query string) *ast.OperationDefinition {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	require.True(t, ok)
	return op
}

func TestCheckVariables(t *testing.T) {
	op := parseOperation(t, `query Q($n: Int, $x: Float, $id: ID, $t: String, $f: Upload, $l: [Int!], $r: String!, $d: Int! = 1) { users { name } }`)

	tests := []struct {
		name      string
		variables map[string]any
		invalid   []string
	}{
		{
			name: "well typed",
			variables: map[string]any{
				"n": float64(3), "x": 1.5, "id": float64(7), "t": "text",
				"f": &scalars.File{Filename: "a.txt"}, "l": []any{float64(1)}, "r": "x",
			},
		},
		{name: "id as string and single list value", variables: map[string]any{"id": "u-1", "l": float64(2), "r": "x"}},
		{name: "json number", variables: map[string]any{"n": json.Number("12"), "r": "x"}},
		{name: "fraction for int", variables: map[string]any{"n": 1.5, "r": "x"}, invalid: []string{"$n"}},
		{name: "int out of range", variables: map[string]any{"n": float64(1 << 40), "r": "x"}, invalid: []string{"$n"}},
		{name: "bool for float", variables: map[string]any{"x": true, "r": "x"}, invalid: []string{"$x"}},
		{name: "string for upload", variables: map[string]any{"f": "a.txt", "r": "x"}, invalid: []string{"$f"}},
		{name: "null list item", variables: map[string]any{"l": []any{float64(1), nil}, "r": "x"}, invalid: []string{"$l"}},
		{name: "number for string", variables: map[string]any{"t": float64(1), "r": "x"}, invalid: []string{"$t"}},
		{name: "required missing", variables: map[string]any{}, invalid: []string{"$r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := checkVariables(op, tt.variables)
			require.Len(t, errs, len(tt.invalid))
			for i, name := range tt.invalid {
				assert.Contains(t, errs[i].Message, `Variable "`+name+`"`)
			}
		})
	}
}

func TestRequestLevel(t *testing.T) {
	assert.False(t, requestLevel(nil))
	assert.True(t, requestLevel([]gqlerrors.FormattedError{{Message: `Variable "$s" got invalid value "x".`}}))
	assert.False(t, requestLevel([]gqlerrors.FormattedError{
		{Message: "coercion"},
		{Message: "boom", Path: []interface{}{"users"}},
	}))
}
