package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCarriesMetadata(t *testing.T) {
	base := stderrors.New("connection refused")

	ee := New(base).
		Component("imagecache").
		Category(CategoryNetwork).
		Context("url", "https://images.example.com/a.png").
		Build()

	assert.Equal(t, "connection refused", ee.Error())
	assert.Equal(t, "imagecache", ee.Component)
	assert.Equal(t, CategoryNetwork, ee.Category)
	assert.Equal(t, "https://images.example.com/a.png", ee.GetContext()["url"])
	assert.True(t, Is(ee, base))
}

func TestNewfDefaultsToGeneric(t *testing.T) {
	ee := Newf("bad payload: %s", "missing id").Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "bad payload: missing id", ee.Error())
}

func TestIsMatchesByCategory(t *testing.T) {
	a := Newf("one").Category(CategoryTimeout).Build()
	b := Newf("two").Category(CategoryTimeout).Build()
	c := Newf("three").Category(CategoryDatabase).Build()

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestAsUnwrapsEnhancedError(t *testing.T) {
	wrapped := New(stderrors.New("boom")).Component("export").Build()

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, "export", ee.Component)
}

func TestGetContextReturnsCopy(t *testing.T) {
	ee := Newf("x").Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "mutated"
	assert.Equal(t, "v", ee.GetContext()["k"])
}

func TestLogAttrsPairs(t *testing.T) {
	ee := Newf("x").Component("loader").Category(CategoryImageFetch).Context("size", 42).Build()
	attrs := ee.LogAttrs()
	assert.Contains(t, attrs, "component")
	assert.Contains(t, attrs, "loader")
	assert.Contains(t, attrs, "size")
	assert.Contains(t, attrs, 42)
}
