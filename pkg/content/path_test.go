package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathHelpers(t *testing.T) {
	t.Run("parent", func(t *testing.T) {
		assert.Equal(t, "/a", Parent("/a/b"))
		assert.Equal(t, "/", Parent("/a"))
		assert.Equal(t, "/", Parent("/"))
		assert.Equal(t, "/a", Parent("/a/b/"))
	})

	t.Run("base", func(t *testing.T) {
		assert.Equal(t, "b", Base("/a/b"))
		assert.Equal(t, "b", Base("a/b/"))
		assert.Equal(t, "", Base("/"))
		assert.Equal(t, "x", Base("x"))
	})

	t.Run("join", func(t *testing.T) {
		assert.Equal(t, "/a", Join("/", "a"))
		assert.Equal(t, "/a/b", Join("/a", "b"))
	})

	t.Run("trim trailing slash", func(t *testing.T) {
		assert.Equal(t, "/", TrimTrailingSlash("/"))
		assert.Equal(t, "/", TrimTrailingSlash("//"))
		assert.Equal(t, "/a", TrimTrailingSlash("/a/"))
		assert.Equal(t, "", TrimTrailingSlash(""))
	})

	t.Run("descendant", func(t *testing.T) {
		assert.True(t, IsDescendant("/a/b", "/a"))
		assert.False(t, IsDescendant("/ab", "/a"))
		assert.False(t, IsDescendant("/a", "/a"))
		assert.True(t, IsDescendant("/a", "/"))
		assert.False(t, IsDescendant("/", "/"))
	})

	t.Run("rebase", func(t *testing.T) {
		assert.Equal(t, "/x", Rebase("/a/b", "/a/b", "/x"))
		assert.Equal(t, "/x/c/d", Rebase("/a/b/c/d", "/a/b", "/x"))
		assert.Equal(t, "/a/y/c", Rebase("/a/b/c", "/a/b", "/a/y"))
	})
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", "a*", "a[1]"} {
		err := ValidateName(name)
		assert.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrConstraint), name)
	}
	assert.NoError(t, ValidateName("jcr:content"))
	assert.NoError(t, ValidateName("page-1"))
}

func TestItemError(t *testing.T) {
	err := PathError("get node", "/missing", ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "get node /missing: item not found", err.Error())

	err = IdentifierError("get node", "abc", ErrAccessDenied)
	assert.True(t, IsAccessDenied(err))
	assert.Contains(t, err.Error(), "identifier abc")
}

func TestNodeAccessors(t *testing.T) {
	node := &Node{
		Path:       "/a/b",
		Children:   []string{"x", "y"},
		Properties: []Property{NewProperty("z", TypeString, "v")},
	}

	assert.Equal(t, "b", node.Name())
	assert.True(t, node.HasNode("x"))
	assert.False(t, node.HasNode("z"))
	assert.Equal(t, []string{"z"}, node.PropertyNames())
	assert.Equal(t, "/a/b/x", node.ChildPath("x"))

	prop, ok := node.Property("z")
	assert.True(t, ok)
	assert.Equal(t, "v", prop.String())

	multi := NewMultiProperty("tags", TypeString, "a", "b")
	assert.Equal(t, "[a, b]", multi.String())

	root := &Node{Path: "/"}
	assert.Equal(t, "", root.Name())
}

func TestParsePropertyType(t *testing.T) {
	typ, err := ParsePropertyType("long")
	assert.NoError(t, err)
	assert.Equal(t, TypeLong, typ)

	_, err = ParsePropertyType("blob")
	assert.Error(t, err)
}
