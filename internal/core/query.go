package core

import (
	"fmt"
	"strings"
	"time"
)

// Pagination defaults for list queries.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one page of a filtered list.
type Page[T any] struct {
	Count      int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	Results    []T   `json:"results"`
}

// normalizePage clamps page (1-based) and pageSize to valid values.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func totalPages(count int64, pageSize int) int {
	n := int((count + int64(pageSize) - 1) / int64(pageSize))
	if n < 1 {
		n = 1
	}
	return n
}

// WhereBuilder assembles a parameterized WHERE clause. Empty filter values
// are skipped so callers can pass optional filters straight through.
type WhereBuilder struct {
	conditions []string
	args       []any
}

// NewWhereBuilder returns an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

func (wb *WhereBuilder) add(format string, arg any) {
	wb.args = append(wb.args, arg)
	wb.conditions = append(wb.conditions, fmt.Sprintf(format, len(wb.args)))
}

// Add appends "column = value" when value is non-empty.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.add(column+" = $%d", value)
}

// AddContains appends a case-insensitive substring match.
func (wb *WhereBuilder) AddContains(column, value string) {
	if value == "" {
		return
	}
	wb.add(column+" ILIKE $%d", "%"+escapeLike(value)+"%")
}

// AddMin appends "column >= value" when value is set.
func (wb *WhereBuilder) AddMin(column string, value *int) {
	if value == nil {
		return
	}
	wb.add(column+" >= $%d", *value)
}

// AddTimestampRange restricts column to [from, to). Zero bounds are open.
func (wb *WhereBuilder) AddTimestampRange(column string, from, to time.Time) {
	if !from.IsZero() {
		wb.add(column+" >= $%d", from)
	}
	if !to.IsZero() {
		wb.add(column+" < $%d", to)
	}
}

// AddDay restricts column to the calendar day containing day.
func (wb *WhereBuilder) AddDay(column string, day time.Time) {
	if day.IsZero() {
		return
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	wb.AddTimestampRange(column, start, start.AddDate(0, 0, 1))
}

// Build returns the clause (with a leading " WHERE ", or "") and its args.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex is the placeholder number of the next argument.
func (wb *WhereBuilder) NextArgIndex() int {
	return len(wb.args) + 1
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
