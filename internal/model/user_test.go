package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserColumn(t *testing.T) {
	u := User{Age: 30, Name: "Ada"}

	age, ok := u.Column("age")
	assert.True(t, ok)
	assert.Equal(t, int32(30), age)

	name, ok := u.Column("name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)

	_, ok = u.Column("email")
	assert.False(t, ok)
}
