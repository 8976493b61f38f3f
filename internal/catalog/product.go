package catalog

import (
	"encoding/json"
	"strconv"
)

// Money is a decimal amount with its resolved ISO currency code. Amount is
// kept as canonical decimal text ("19.99") so no float rounding happens
// between the source file and the numeric column.
type Money struct {
	Amount   string
	Currency string
}

func (m Money) String() string {
	return m.Amount + " " + m.Currency
}

// Product is a fully validated record ready to be written. Optional fields
// are nil when the source did not supply them (or they were dropped).
type Product struct {
	ProductID    string
	Title        string
	Description  string
	Link         string
	ImageLink    string
	Availability string
	Price        Money
	Condition    string
	Brand        string
	GTIN         string

	SalePrice             *Money
	ItemGroupID           *string
	GoogleProductCategory *string
	ProductType           *string
	Shipping              *string
	AdditionalImageLinks  []string
	Size                  *string
	Color                 *string
	Material              *string
	Pattern               *string
	Gender                *string
	Model                 *string

	ProductLength      *string
	ProductWidth       *string
	ProductHeight      *string
	ProductWeight      *string
	LifestyleImageLink *string
	MaxHandlingTime    *int
	IsBundle           *bool
}

// Column describes one writable products column.
type Column struct {
	Name    string
	SQLType string
}

// Columns lists every writable products column in insert order. Server
// assigned columns (id, created_at, updated_at) are not included.
var Columns = []Column{
	{"product_id", "text"},
	{"title", "text"},
	{"description", "text"},
	{"link", "text"},
	{"image_link", "text"},
	{"availability", "text"},
	{"price", "numeric"},
	{"currency", "text"},
	{"condition", "text"},
	{"brand", "text"},
	{"gtin", "text"},
	{"sale_price", "numeric"},
	{"sale_price_currency", "text"},
	{"item_group_id", "text"},
	{"google_product_category", "text"},
	{"product_type", "text"},
	{"shipping", "text"},
	{"additional_image_links", "jsonb"},
	{"size", "text"},
	{"color", "text"},
	{"material", "text"},
	{"pattern", "text"},
	{"gender", "text"},
	{"model", "text"},
	{"product_length", "text"},
	{"product_width", "text"},
	{"product_height", "text"},
	{"product_weight", "text"},
	{"lifestyle_image_link", "text"},
	{"max_handling_time", "integer"},
	{"is_bundle", "boolean"},
}

// Values renders the product as column name to text value. A missing key
// means the product does not supply that column; blank values are treated
// the same way.
func (p *Product) Values() map[string]string {
	v := map[string]string{
		"product_id":   p.ProductID,
		"title":        p.Title,
		"description":  p.Description,
		"link":         p.Link,
		"image_link":   p.ImageLink,
		"availability": p.Availability,
		"price":        p.Price.Amount,
		"currency":     p.Price.Currency,
		"condition":    p.Condition,
		"brand":        p.Brand,
		"gtin":         p.GTIN,
	}
	if p.SalePrice != nil {
		v["sale_price"] = p.SalePrice.Amount
		v["sale_price_currency"] = p.SalePrice.Currency
	}
	if p.AdditionalImageLinks != nil {
		raw, _ := json.Marshal(p.AdditionalImageLinks)
		v["additional_image_links"] = string(raw)
	}
	if p.MaxHandlingTime != nil {
		v["max_handling_time"] = strconv.Itoa(*p.MaxHandlingTime)
	}
	if p.IsBundle != nil {
		v["is_bundle"] = strconv.FormatBool(*p.IsBundle)
	}
	optional := map[string]*string{
		"item_group_id":           p.ItemGroupID,
		"google_product_category": p.GoogleProductCategory,
		"product_type":            p.ProductType,
		"shipping":                p.Shipping,
		"size":                    p.Size,
		"color":                   p.Color,
		"material":                p.Material,
		"pattern":                 p.Pattern,
		"gender":                  p.Gender,
		"model":                   p.Model,
		"product_length":          p.ProductLength,
		"product_width":           p.ProductWidth,
		"product_height":          p.ProductHeight,
		"product_weight":          p.ProductWeight,
		"lifestyle_image_link":    p.LifestyleImageLink,
	}
	for name, s := range optional {
		if s != nil {
			v[name] = *s
		}
	}
	for name, s := range v {
		if s == "" {
			delete(v, name)
		}
	}
	return v
}
