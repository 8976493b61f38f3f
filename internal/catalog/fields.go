// Package catalog describes the product feed schema: the canonical field
// names, their tiers, the source aliases that map onto them and the fixed
// enumerations a product record may carry.
package catalog

import "strings"

// Field identifies a known product feed column.
type Field int

const (
	ProductID Field = iota
	Title
	Description
	Link
	ImageLink
	Availability
	Price
	Condition
	Brand
	GTIN

	SalePrice
	ItemGroupID
	GoogleProductCategory
	ProductType
	Shipping
	AdditionalImageLinks
	Size
	Color
	Material
	Pattern
	Gender
	Model

	ProductLength
	ProductWidth
	ProductHeight
	ProductWeight
	LifestyleImageLink
	MaxHandlingTime
	IsBundle

	fieldCount
)

// Tier classifies how strongly a feed expects a field.
type Tier int

const (
	TierRequired Tier = iota
	TierRecommended
	TierOptional
)

func (t Tier) String() string {
	switch t {
	case TierRequired:
		return "required"
	case TierRecommended:
		return "recommended"
	default:
		return "optional"
	}
}

var fieldNames = [fieldCount]string{
	ProductID:             "product_id",
	Title:                 "title",
	Description:           "description",
	Link:                  "link",
	ImageLink:             "image_link",
	Availability:          "availability",
	Price:                 "price",
	Condition:             "condition",
	Brand:                 "brand",
	GTIN:                  "gtin",
	SalePrice:             "sale_price",
	ItemGroupID:           "item_group_id",
	GoogleProductCategory: "google_product_category",
	ProductType:           "product_type",
	Shipping:              "shipping",
	AdditionalImageLinks:  "additional_image_links",
	Size:                  "size",
	Color:                 "color",
	Material:              "material",
	Pattern:               "pattern",
	Gender:                "gender",
	Model:                 "model",
	ProductLength:         "product_length",
	ProductWidth:          "product_width",
	ProductHeight:         "product_height",
	ProductWeight:         "product_weight",
	LifestyleImageLink:    "lifestyle_image_link",
	MaxHandlingTime:       "max_handling_time",
	IsBundle:              "is_bundle",
}

// String returns the canonical column name.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// Tier reports the field's tier.
func (f Field) Tier() Tier {
	switch {
	case f <= GTIN:
		return TierRequired
	case f <= Model:
		return TierRecommended
	default:
		return TierOptional
	}
}

// Essential reports whether losing the field makes a row unsalvageable.
func (f Field) Essential() bool {
	return f == ProductID || f == Title || f == Price
}

// Fields returns every known field in canonical order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// RequiredFields returns the fields every row must carry.
func RequiredFields() []Field { return byTier(TierRequired) }

// RecommendedFields returns the fields whose absence is reported as a warning.
func RecommendedFields() []Field { return byTier(TierRecommended) }

func byTier(t Tier) []Field {
	var out []Field
	for _, f := range Fields() {
		if f.Tier() == t {
			out = append(out, f)
		}
	}
	return out
}

var byName = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for _, f := range Fields() {
		m[f.String()] = f
	}
	return m
}()

// aliases maps source headers onto canonical names. Matching is exact.
var aliases = map[string]Field{
	"id":                      ProductID,
	"shipping(country:price)": Shipping,
	"Model":                   Model,
}

// Lookup resolves a canonical column name.
func Lookup(name string) (Field, bool) {
	f, ok := byName[name]
	return f, ok
}

// Resolve maps a source header to a field, trying the canonical name first
// and then the alias table. The second result reports whether the header was
// an alias.
func Resolve(header string) (f Field, alias bool, ok bool) {
	if f, ok := byName[header]; ok {
		return f, false, true
	}
	if f, ok := aliases[header]; ok {
		return f, true, true
	}
	return 0, false, false
}

// Names renders fields as a comma-separated list of column names.
func Names(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}

// Enumerations accepted for the restricted fields.
var (
	AvailabilityValues = []string{"in_stock", "out_of_stock", "preorder", "backorder"}
	ConditionValues    = []string{"new", "used", "refurbished"}
	GenderValues       = []string{"male", "female", "unisex"}
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 150

// maxLengths mirrors the products column widths. Fields stored as TEXT,
// numbers or JSON have no entry.
var maxLengths = [fieldCount]int{
	ProductID:             100,
	Title:                 MaxTitleLength,
	Availability:          50,
	Condition:             50,
	Brand:                 100,
	GTIN:                  100,
	ItemGroupID:           100,
	GoogleProductCategory: 255,
	ProductType:           255,
	Shipping:              50,
	Size:                  50,
	Color:                 50,
	Material:              100,
	Pattern:               100,
	Gender:                20,
	Model:                 100,
	ProductLength:         50,
	ProductWidth:          50,
	ProductHeight:         50,
	ProductWeight:         50,
}

// MaxLength is the longest value the field's column holds, in characters.
// Zero means unbounded.
func (f Field) MaxLength() int {
	if f < 0 || f >= fieldCount {
		return 0
	}
	return maxLengths[f]
}
