package core

import (
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []*catalog.Product {
	color := "red"
	return []*catalog.Product{
		{ProductID: "A", Title: "Alpha", Price: catalog.Money{Amount: "1.00", Currency: "EUR"}, Color: &color},
		{ProductID: "B", Title: "Beta", Price: catalog.Money{Amount: "2.50", Currency: "USD"}},
	}
}

func TestInsertStatement(t *testing.T) {
	query, args := insertStatement(testProducts(), []string{"product_id", "price", "color"})

	assert.Equal(t,
		`INSERT INTO products ("product_id", "price", "color") `+
			`SELECT v."product_id"::text, v."price"::numeric, v."color"::text `+
			`FROM unnest($1::text[], $2::text[], $3::text[]) AS v("product_id", "price", "color") `+
			`ON CONFLICT (product_id) DO NOTHING RETURNING product_id`,
		query)

	require.Len(t, args, 3)
	colors := args[2].([]*string)
	require.Len(t, colors, 2)
	require.NotNil(t, colors[0])
	assert.Equal(t, "red", *colors[0])
	assert.Nil(t, colors[1], "unsupplied column must be NULL")

	prices := args[1].([]*string)
	assert.Equal(t, "2.50", *prices[1])
}

func TestUpdateStatement(t *testing.T) {
	query, args := updateStatement(testProducts(), []string{"title", "color"})

	assert.Equal(t,
		`UPDATE products AS p SET "title" = COALESCE(v."title"::text, p."title"), `+
			`"color" = COALESCE(v."color"::text, p."color"), updated_at = NOW() `+
			`FROM unnest($1::text[], $2::text[], $3::text[]) AS v("product_id", "title", "color") `+
			`WHERE p.product_id = v.product_id RETURNING p.product_id`,
		query)

	require.Len(t, args, 3)
	ids := args[0].([]*string)
	assert.Equal(t, "A", *ids[0])
	assert.Equal(t, "B", *ids[1])
}

func TestSQLType(t *testing.T) {
	assert.Equal(t, "numeric", sqlType("sale_price"))
	assert.Equal(t, "jsonb", sqlType("additional_image_links"))
	assert.Equal(t, "integer", sqlType("max_handling_time"))
	assert.Equal(t, "boolean", sqlType("is_bundle"))
	assert.Equal(t, "text", sqlType("unknown"))
}
