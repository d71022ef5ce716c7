// Package model holds the value types returned by resolvers.
package model

// UsersTable is the table User rows are read from.
const UsersTable = "users"

// User is one row of the users table.
type User struct {
	Age  int32  `json:"age"`
	Name string `json:"name"`
}

// Column returns the value of the named column.
func (u User) Column(name string) (any, bool) {
	switch name {
	case "age":
		return u.Age, true
	case "name":
		return u.Name, true
	default:
		return nil, false
	}
}
