package catalog

import "sort"

// Row is one normalized source row. Known fields live in typed slots, an
// empty slot means the field is absent. Columns the catalog does not know
// are kept in Extra under their source header.
type Row struct {
	// Number is the 1-based data row number in the source (header excluded).
	Number int

	values  [fieldCount]string
	present [fieldCount]bool
	Extra   map[string]string
}

// NewRow returns an empty row for the given source position.
func NewRow(number int) *Row {
	return &Row{Number: number}
}

// Get returns the field value, or "" when absent.
func (r *Row) Get(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return r.values[f]
}

// Set stores a field value. Setting "" is equivalent to Drop.
func (r *Row) Set(f Field, v string) {
	if f < 0 || f >= fieldCount {
		return
	}
	r.values[f] = v
}

// Supply records a value read from a source column. The field counts as
// present even when v is blank.
func (r *Row) Supply(f Field, v string) {
	if f < 0 || f >= fieldCount {
		return
	}
	r.present[f] = true
	r.values[f] = v
}

// Present reports whether the source had a column for the field.
func (r *Row) Present(f Field) bool {
	if f < 0 || f >= fieldCount {
		return false
	}
	return r.present[f]
}

// Absent returns the fields from want that the source had no column for.
func (r *Row) Absent(want []Field) []Field {
	var out []Field
	for _, f := range want {
		if !r.Present(f) {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether the field carries a non-blank value.
func (r *Row) Has(f Field) bool {
	return r.Get(f) != ""
}

// Drop removes a field from the row.
func (r *Row) Drop(f Field) {
	r.Set(f, "")
}

// SetExtra records an unknown column.
func (r *Row) SetExtra(header, v string) {
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[header] = v
}

// ExtraColumns returns the unknown column headers in sorted order.
func (r *Row) ExtraColumns() []string {
	cols := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Missing returns the fields from want that are absent, in the order given.
func (r *Row) Missing(want []Field) []Field {
	var out []Field
	for _, f := range want {
		if !r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := *r
	if r.Extra != nil {
		c.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
