package scalars

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
)

func TestUploadScalar(t *testing.T) {
	scalar := Upload()
	file := &File{Filename: "avatar.png", ContentType: "image/png", Size: 3, Content: []byte{1, 2, 3}}

	assert.Equal(t, "Upload", scalar.Name())
	assert.Same(t, file, scalar.ParseValue(file))
	assert.Equal(t, file, scalar.ParseValue(*file))
	assert.Nil(t, scalar.ParseValue("avatar.png"))
	assert.Equal(t, "avatar.png", scalar.Serialize(file))
	assert.Nil(t, scalar.Serialize(42))
	assert.Nil(t, scalar.ParseLiteral(&ast.StringValue{Value: "avatar.png"}))
}
