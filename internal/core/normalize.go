package core

import (
	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// headerSlot is the resolved target of one source column.
type headerSlot struct {
	header string
	field  catalog.Field
	known  bool
	skip   bool
}

// HeaderMap is a source header resolved against the catalog. Build it once
// per source and reuse it for every row.
type HeaderMap struct {
	slots []headerSlot
}

// NewHeaderMap resolves headers, including aliases. When both an alias and
// its canonical column are present the canonical column wins.
func NewHeaderMap(header []string) *HeaderMap {
	canonical := make(map[catalog.Field]bool)
	for _, h := range header {
		if f, alias, ok := catalog.Resolve(h); ok && !alias {
			canonical[f] = true
		}
	}

	hm := &HeaderMap{slots: make([]headerSlot, 0, len(header))}
	taken := make(map[catalog.Field]bool)
	for _, h := range header {
		if h == "" {
			continue
		}
		f, alias, ok := catalog.Resolve(h)
		slot := headerSlot{header: h, field: f, known: ok}
		if ok && ((alias && canonical[f]) || taken[f]) {
			slot.skip = true
		}
		if ok && !slot.skip {
			taken[f] = true
		}
		hm.slots = append(hm.slots, slot)
	}
	return hm
}

// Unknown returns the source headers that match no catalog field.
func (hm *HeaderMap) Unknown() []string {
	var out []string
	for _, s := range hm.slots {
		if !s.known {
			out = append(out, s.header)
		}
	}
	return out
}

// Normalize converts a raw row into a catalog.Row: values are cleaned,
// aliased columns land on their canonical field and unknown columns go to
// the row's Extra bag. It never fails.
func Normalize(hm *HeaderMap, raw RawRow) *catalog.Row {
	row := catalog.NewRow(raw.Number)
	for _, s := range hm.slots {
		if s.skip {
			continue
		}
		v := CleanCell(raw.Values[s.header])
		if !s.known {
			row.SetExtra(s.header, v)
			continue
		}
		row.Supply(s.field, v)
	}
	return row
}
