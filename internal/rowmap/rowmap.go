// Package rowmap converts query results into model values after checking
// that the result columns match the expected shape.
package rowmap

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"users-graphql/internal/model"
)

// Kind is the value family a column must belong to.
type Kind int

const (
	KindInt32 Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int4"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Database type names accepted for each kind, as reported by
// sql.ColumnType.DatabaseTypeName for lib/pq and go-sql-driver/mysql.
var kindTypeNames = map[Kind]map[string]struct{}{
	KindInt32: {"INT4": {}, "INT": {}, "INTEGER": {}, "INT2": {}, "SMALLINT": {}, "MEDIUMINT": {}},
	KindText:  {"TEXT": {}, "VARCHAR": {}, "CHAR": {}, "BPCHAR": {}, "NAME": {}, "CHARACTER VARYING": {}},
}

// Accepts reports whether a driver type name belongs to the kind. An empty
// name means the driver did not report one and is accepted.
func (k Kind) Accepts(databaseType string) bool {
	if databaseType == "" {
		return true
	}
	_, ok := kindTypeNames[k][strings.ToUpper(strings.TrimSpace(databaseType))]
	return ok
}

// Column is one expected result column.
type Column struct {
	Name string
	Kind Kind
}

// Shape is the ordered column layout a result must have.
type Shape []Column

// UserShape is the layout of SELECT age, name FROM users.
var UserShape = Shape{
	{Name: "age", Kind: KindInt32},
	{Name: "name", Kind: KindText},
}

// Names returns the column names in order.
func (s Shape) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// ColumnInfo describes a column as reported by the driver.
type ColumnInfo struct {
	Name         string
	DatabaseType string
}

// Check compares the reported columns against the shape.
func (s Shape) Check(columns []ColumnInfo) error {
	if len(columns) != len(s) {
		return &MappingError{
			Row:    -1,
			Reason: fmt.Sprintf("expected %d columns (%s), got %d", len(s), strings.Join(s.Names(), ", "), len(columns)),
		}
	}
	for i, want := range s {
		got := columns[i]
		if !strings.EqualFold(got.Name, want.Name) {
			return &MappingError{
				Row:    -1,
				Column: want.Name,
				Reason: fmt.Sprintf("column %d is %q", i+1, got.Name),
			}
		}
		if !want.Kind.Accepts(got.DatabaseType) {
			return &MappingError{
				Row:    -1,
				Column: want.Name,
				Reason: fmt.Sprintf("type %s is not %s", got.DatabaseType, want.Kind),
			}
		}
	}
	return nil
}

// MappingError reports a result that cannot be converted to the target
// type. Row is zero-based; -1 means the column layout itself is wrong.
type MappingError struct {
	Row    int
	Column string
	Reason string
}

func (e *MappingError) Error() string {
	switch {
	case e.Row < 0 && e.Column == "":
		return "row mapping: " + e.Reason
	case e.Row < 0:
		return fmt.Sprintf("row mapping: column %q: %s", e.Column, e.Reason)
	default:
		return fmt.Sprintf("row mapping: row %d, column %q: %s", e.Row, e.Column, e.Reason)
	}
}

// Rows is the subset of *sql.Rows the mapper reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() ([]string, error)
}

type columnTyper interface {
	ColumnTypes() ([]*sql.ColumnType, error)
}

// Describe reads the column layout of rows. Type names are included when
// rows exposes ColumnTypes.
func Describe(rows Rows) ([]ColumnInfo, error) {
	if typed, ok := rows.(columnTyper); ok {
		types, err := typed.ColumnTypes()
		if err != nil {
			return nil, fmt.Errorf("read column types: %w", err)
		}
		infos := make([]ColumnInfo, len(types))
		for i, ct := range types {
			infos[i] = ColumnInfo{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
		}
		return infos, nil
	}

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	infos := make([]ColumnInfo, len(names))
	for i, name := range names {
		infos[i] = ColumnInfo{Name: name}
	}
	return infos, nil
}

// Users maps every row of an (age, name) result to a model.User, in the
// order the database returned them. rows is closed before returning.
func Users(rows Rows) ([]model.User, error) {
	defer rows.Close()

	columns, err := Describe(rows)
	if err != nil {
		return nil, err
	}
	if err := UserShape.Check(columns); err != nil {
		return nil, err
	}

	users := make([]model.User, 0)
	for i := 0; rows.Next(); i++ {
		var (
			age  sql.NullInt64
			name sql.NullString
		)
		if err := rows.Scan(&age, &name); err != nil {
			return nil, &MappingError{Row: i, Reason: err.Error()}
		}
		user, err := toUser(i, age, name)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func toUser(row int, age sql.NullInt64, name sql.NullString) (model.User, error) {
	if !age.Valid {
		return model.User{}, &MappingError{Row: row, Column: "age", Reason: "unexpected NULL"}
	}
	if age.Int64 < math.MinInt32 || age.Int64 > math.MaxInt32 {
		return model.User{}, &MappingError{Row: row, Column: "age", Reason: fmt.Sprintf("value %d overflows int4", age.Int64)}
	}
	if !name.Valid {
		return model.User{}, &MappingError{Row: row, Column: "name", Reason: "unexpected NULL"}
	}
	return model.User{Age: int32(age.Int64), Name: name.String}, nil
}
