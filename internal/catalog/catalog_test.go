package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupExactSubcategory(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	p, ok := c.Lookup("interior", "cocina")
	require.True(t, ok)
	assert.Contains(t, p.URL, "interior_cocina")
}

func TestLookupAlternativeByTag(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	// "habitacion" is not a subcategory but tags the recamara photo.
	p, ok := c.Lookup("interior", "habitacion")
	require.True(t, ok)
	assert.Contains(t, p.URL, "interior_recamara")
}

func TestLookupFallsBackWithinCategory(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	p, ok := c.Lookup("amenidades", "gimnasio")
	require.True(t, ok, "unknown subfilter still yields some photo in the category")
	assert.NotEmpty(t, p.URL)
	assert.NotEmpty(t, p.Caption)
}

func TestLookupUnknownCategory(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	_, ok := c.Lookup("helipuerto")
	assert.False(t, ok)
}

func TestBrochureFallback(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	p, ok := c.Brochure("yucatan")
	require.True(t, ok)
	assert.Contains(t, p.URL, "yucatan")

	p, ok = c.Brochure("valle_de_guadalupe")
	require.True(t, ok, "unknown property falls back to the general brochure")
	assert.Contains(t, p.URL, "general")
}
