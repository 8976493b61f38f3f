package core

// validation.go implements the tiered row policy:
//
//  1. Structural check: every required column must exist and the essential
//     fields (product_id, title, price) must carry a value.
//  2. Per-field checks, each independent of the others.
//  3. Salvage: rows whose errors avoid the essential fields have the
//     offending fields dropped and are checked again.
//  4. Recommended fields: absent ones are reported, never blocking.
//
// The validator is pure. It reports what should be logged as Events on the
// outcome and leaves persistence to the caller.

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// FieldError describes one field that failed validation.
type FieldError struct {
	Field   catalog.Field
	Value   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator applies the row policy. DefaultCurrency is used for prices
// given as a bare amount.
type Validator struct {
	DefaultCurrency string
}

// NewValidator returns a Validator with the given default currency.
func NewValidator(defaultCurrency string) *Validator {
	return &Validator{DefaultCurrency: defaultCurrency}
}

// Validate classifies one normalized row. The input row is not modified.
func (v *Validator) Validate(row *catalog.Row) *RowOutcome {
	out := &RowOutcome{RowNumber: row.Number}

	missing := row.Absent(catalog.RequiredFields())
	for _, f := range []catalog.Field{catalog.ProductID, catalog.Title, catalog.Price} {
		if row.Present(f) && !row.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		for _, f := range missing {
			out.Errors = append(out.Errors, &FieldError{Field: f, Message: "missing"})
		}
		return out.reject(fmt.Sprintf("Row %d: Missing required fields: %s", row.Number, catalog.Names(missing)))
	}

	work := row.Clone()
	product, errs := v.check(work, nil, out)
	out.Errors = errs

	if len(errs) > 0 {
		if hasEssential(errs) {
			return out.reject(fmt.Sprintf("Row %d: Validation failed - %s", row.Number, joinErrors(errs)))
		}

		dropped := make(map[catalog.Field]bool, len(errs))
		for _, e := range errs {
			if dropped[e.Field] {
				continue
			}
			dropped[e.Field] = true
			work.Drop(e.Field)
			out.FieldsDropped = append(out.FieldsDropped, e.Field)
		}

		var again []*FieldError
		product, again = v.check(work, dropped, out)
		if len(again) > 0 {
			out.Errors = append(out.Errors, again...)
			return out.reject(fmt.Sprintf("Row %d: Validation failed after dropping %s - %s",
				row.Number, catalog.Names(out.FieldsDropped), joinErrors(again)))
		}

		out.Classification = Salvaged
		out.event(LevelWarning, fmt.Sprintf("Row %d: Salvaged by dropping invalid fields: %s (%s)",
			row.Number, catalog.Names(out.FieldsDropped), joinErrors(errs)))
	} else {
		out.Classification = Accepted
	}

	if absent := work.Missing(catalog.RecommendedFields()); len(absent) > 0 {
		if out.Classification == Accepted {
			out.Classification = AcceptedWithWarnings
		}
		out.event(LevelWarning, fmt.Sprintf("Row %d: Missing recommended fields: %s", row.Number, catalog.Names(absent)))
	}

	out.Product = product
	return out
}

func (o *RowOutcome) reject(message string) *RowOutcome {
	o.Classification = Rejected
	o.Product = nil
	o.event(LevelError, message)
	return o
}

func (o *RowOutcome) event(level Level, message string) {
	o.Events = append(o.Events, Event{Level: level, Message: message})
}

func hasEssential(errs []*FieldError) bool {
	for _, e := range errs {
		if e.Field.Essential() {
			return true
		}
	}
	return false
}

func joinErrors(errs []*FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// check runs every field rule against row and builds the product. Fields
// in dropped were removed by salvage and are not required any more.
// Informational failures drop the field from row and are reported on out
// directly; they never appear in the returned errors.
func (v *Validator) check(row *catalog.Row, dropped map[catalog.Field]bool, out *RowOutcome) (*catalog.Product, []*FieldError) {
	var errs []*FieldError
	fail := func(f catalog.Field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: f, Value: row.Get(f), Message: fmt.Sprintf(format, args...)})
	}
	ignore := func(f catalog.Field, reason string) {
		out.event(LevelInfo, fmt.Sprintf("Row %d: Ignored %s %q: %s", row.Number, f, row.Get(f), reason))
		row.Drop(f)
	}

	for _, f := range catalog.RequiredFields() {
		if !row.Has(f) && !dropped[f] && !f.Essential() {
			fail(f, "is required")
		}
	}

	p := &catalog.Product{
		ProductID:   row.Get(catalog.ProductID),
		Title:       row.Get(catalog.Title),
		Description: row.Get(catalog.Description),
		Link:        row.Get(catalog.Link),
		ImageLink:   row.Get(catalog.ImageLink),
		Brand:       row.Get(catalog.Brand),
	}

	// Column widths. Optional fields are ignored; anything else fails and
	// goes through salvage like any other field error.
	for _, f := range catalog.Fields() {
		limit := f.MaxLength()
		if limit == 0 || !row.Has(f) || utf8.RuneCountInString(row.Get(f)) <= limit {
			continue
		}
		if f.Tier() == catalog.TierOptional {
			ignore(f, fmt.Sprintf("longer than %d characters", limit))
			continue
		}
		fail(f, "must not exceed %d characters", limit)
	}

	if row.Has(catalog.Price) {
		price, err := ParseMoney(row.Get(catalog.Price), v.DefaultCurrency)
		if err != nil {
			fail(catalog.Price, "%v", err)
		}
		p.Price = price
	}

	for _, f := range []catalog.Field{catalog.Link, catalog.ImageLink} {
		if row.Has(f) && !IsHTTPURL(row.Get(f)) {
			fail(f, "must be an http(s) URL")
		}
	}

	if s := row.Get(catalog.Availability); s != "" {
		if p.Availability = strings.ToLower(s); !slices.Contains(catalog.AvailabilityValues, p.Availability) {
			fail(catalog.Availability, "must be one of: %s", strings.Join(catalog.AvailabilityValues, ", "))
		}
	}
	if s := row.Get(catalog.Condition); s != "" {
		if p.Condition = strings.ToLower(s); !slices.Contains(catalog.ConditionValues, p.Condition) {
			fail(catalog.Condition, "must be one of: %s", strings.Join(catalog.ConditionValues, ", "))
		}
	}

	if s := row.Get(catalog.GTIN); s != "" {
		if !IsDigits(s) {
			fail(catalog.GTIN, "must contain only digits")
		}
		p.GTIN = s
	}

	if s := row.Get(catalog.SalePrice); s != "" {
		sale, err := ParseMoney(s, v.DefaultCurrency)
		if err != nil {
			fail(catalog.SalePrice, "%v", err)
		} else {
			p.SalePrice = &sale
		}
	}

	if s := row.Get(catalog.Shipping); s != "" {
		if !shippingRegex.MatchString(s) {
			fail(catalog.Shipping, "%q must look like 'DE:0.00 EUR' (country:price)", s)
		} else {
			p.Shipping = &s
		}
	}

	if s := row.Get(catalog.AdditionalImageLinks); s != "" {
		links, err := ParseImageLinks(s)
		if err != nil {
			fail(catalog.AdditionalImageLinks, "%v", err)
		} else {
			p.AdditionalImageLinks = links
		}
	}

	if s := row.Get(catalog.Gender); s != "" {
		if g := strings.ToLower(s); slices.Contains(catalog.GenderValues, g) {
			p.Gender = &g
		} else {
			fail(catalog.Gender, "must be one of: %s", strings.Join(catalog.GenderValues, ", "))
		}
	}

	p.ItemGroupID = optional(row, catalog.ItemGroupID)
	p.GoogleProductCategory = optional(row, catalog.GoogleProductCategory)
	p.ProductType = optional(row, catalog.ProductType)
	p.Size = optional(row, catalog.Size)
	p.Color = optional(row, catalog.Color)
	p.Material = optional(row, catalog.Material)
	p.Pattern = optional(row, catalog.Pattern)
	p.Model = optional(row, catalog.Model)

	for _, f := range []catalog.Field{catalog.ProductLength, catalog.ProductWidth, catalog.ProductHeight} {
		if row.Has(f) && !dimensionRegex.MatchString(row.Get(f)) {
			ignore(f, "expected '<number> <cm|mm|m>'")
		}
	}
	if row.Has(catalog.ProductWeight) && !weightRegex.MatchString(row.Get(catalog.ProductWeight)) {
		ignore(catalog.ProductWeight, "expected '<number> <kg|g>'")
	}
	if row.Has(catalog.LifestyleImageLink) && !IsHTTPURL(row.Get(catalog.LifestyleImageLink)) {
		ignore(catalog.LifestyleImageLink, "must be an http(s) URL")
	}
	if row.Has(catalog.MaxHandlingTime) {
		if n, err := ParseHandlingTime(row.Get(catalog.MaxHandlingTime)); err != nil {
			ignore(catalog.MaxHandlingTime, err.Error())
		} else {
			p.MaxHandlingTime = &n
		}
	}
	p.ProductLength = optional(row, catalog.ProductLength)
	p.ProductWidth = optional(row, catalog.ProductWidth)
	p.ProductHeight = optional(row, catalog.ProductHeight)
	p.ProductWeight = optional(row, catalog.ProductWeight)
	p.LifestyleImageLink = optional(row, catalog.LifestyleImageLink)

	if s := row.Get(catalog.IsBundle); s != "" {
		if b, ok := ParseBool(s); ok {
			p.IsBundle = &b
		} else {
			ignore(catalog.IsBundle, "not a recognised yes/no value")
		}
	}

	return p, errs
}

func optional(row *catalog.Row, f catalog.Field) *string {
	if !row.Has(f) {
		return nil
	}
	s := row.Get(f)
	return &s
}
