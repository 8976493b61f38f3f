package core

import (
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	hm := NewHeaderMap([]string{"id", "title", "Model", "shipping(country:price)", "color", "internal_note", ""})
	row := Normalize(hm, RawRow{Number: 4, Values: map[string]string{
		"id":                      "  SKU-1 ",
		"title":                   `="Shirt"`,
		"Model":                   "M-1",
		"shipping(country:price)": "DE:4.95 EUR",
		"color":                   "",
		"internal_note":           "keep me",
	}})

	assert.Equal(t, 4, row.Number)
	assert.Equal(t, "SKU-1", row.Get(catalog.ProductID))
	assert.Equal(t, "Shirt", row.Get(catalog.Title))
	assert.Equal(t, "M-1", row.Get(catalog.Model))
	assert.Equal(t, "DE:4.95 EUR", row.Get(catalog.Shipping))

	assert.True(t, row.Present(catalog.Color))
	assert.False(t, row.Has(catalog.Color))
	assert.False(t, row.Present(catalog.Price))

	assert.Equal(t, map[string]string{"internal_note": "keep me"}, row.Extra)
	assert.Equal(t, []string{"internal_note"}, hm.Unknown())
}

func TestNormalize_CanonicalBeatsAlias(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"alias first", []string{"id", "product_id"}},
		{"canonical first", []string{"product_id", "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHeaderMap(tt.header)
			row := Normalize(hm, RawRow{Number: 1, Values: map[string]string{
				"id":         "from-alias",
				"product_id": "from-canonical",
			}})

			assert.Equal(t, "from-canonical", row.Get(catalog.ProductID))
			assert.Empty(t, row.Extra)
			assert.Empty(t, hm.Unknown())
		})
	}
}

func TestNormalize_AliasIsCaseSensitive(t *testing.T) {
	hm := NewHeaderMap([]string{"ID", "MODEL"})
	assert.Equal(t, []string{"ID", "MODEL"}, hm.Unknown())
}
