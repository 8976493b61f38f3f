package core

// reader.go streams tabular sources in bounded chunks.
//
// Every cell is delivered as raw text. Nothing is type-inferred here so the
// validator stays in control of coercion. Formats plug in through the format
// registry keyed by file extension.

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is used when a non-positive chunk size is requested.
const DefaultChunkSize = 500

// RawRow is one source row keyed by source header.
type RawRow struct {
	// Number is the 1-based data row number (header excluded).
	Number int
	Values map[string]string
}

// Chunk is a bounded batch of source rows.
type Chunk struct {
	Index  int
	Header []string
	Rows   []RawRow
}

// ChunkReader yields chunks until io.EOF. It is forward-only.
type ChunkReader interface {
	Next(ctx context.Context) (*Chunk, error)
	Close() error
}

// recordSource yields raw records; io.EOF ends the stream.
type recordSource interface {
	Read() ([]string, error)
	Close() error
}

// FormatOpener opens a file as a record source.
type FormatOpener func(path string) (recordSource, error)

var (
	formats   = make(map[string]FormatOpener)
	formatsMu sync.RWMutex
)

// RegisterFormat adds an opener for a file extension such as ".csv".
// Panics if the extension is already registered.
func RegisterFormat(ext string, open FormatOpener) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	ext = strings.ToLower(ext)
	if _, exists := formats[ext]; exists {
		panic("format already registered: " + ext)
	}
	formats[ext] = open
}

// SupportedFormats returns the registered extensions, sorted.
func SupportedFormats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsSupportedFormat reports whether a file name has a registered extension.
func IsSupportedFormat(name string) bool {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	_, ok := formats[strings.ToLower(filepath.Ext(name))]
	return ok
}

func init() {
	RegisterFormat(".csv", openCSV)
	RegisterFormat(".xlsx", openXLSX)
}

// OpenSource opens path for chunked reading. The header row is read
// eagerly so an unreadable or header-less file fails here.
func OpenSource(path string, chunkSize int) (ChunkReader, error) {
	ext := strings.ToLower(filepath.Ext(path))

	formatsMu.RLock()
	open, ok := formats[ext]
	formatsMu.RUnlock()
	if !ok {
		return nil, errors.WithHintf(errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext),
			"supported formats: %s", strings.Join(SupportedFormats(), ", "))
	}

	src, err := open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", filepath.Base(path)), ErrSourceFormat)
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	r := &tableReader{src: src, chunkSize: chunkSize}
	if err := r.readHeader(); err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// tableReader turns a record source into header-keyed chunks.
type tableReader struct {
	src       recordSource
	chunkSize int
	header    []string

	rowNumber int
	chunks    int
	emitted   int
	done      bool
}

func (r *tableReader) readHeader() error {
	for {
		rec, err := r.src.Read()
		if err == io.EOF {
			return ErrEmptySource
		}
		if err != nil {
			return errors.Mark(errors.Wrap(err, "read header"), ErrSourceFormat)
		}
		if isBlankRecord(rec) {
			continue
		}
		r.header = make([]string, len(rec))
		for i, h := range rec {
			r.header[i] = strings.TrimSpace(h)
		}
		return nil
	}
}

// Next returns the next chunk, or io.EOF after the last one. A source
// without a single non-blank data row yields ErrEmptySource instead.
func (r *tableReader) Next(ctx context.Context) (*Chunk, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunk := &Chunk{Index: r.chunks, Header: r.header, Rows: make([]RawRow, 0, r.chunkSize)}
	for len(chunk.Rows) < r.chunkSize {
		rec, err := r.src.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read data row %d", r.rowNumber+1), ErrSourceFormat)
		}
		r.rowNumber++
		if isBlankRecord(rec) {
			continue
		}
		chunk.Rows = append(chunk.Rows, RawRow{Number: r.rowNumber, Values: r.keyed(rec)})
	}

	if len(chunk.Rows) == 0 {
		if r.emitted == 0 {
			return nil, ErrEmptySource
		}
		return nil, io.EOF
	}

	r.chunks++
	r.emitted += len(chunk.Rows)
	return chunk, nil
}

// keyed maps a record onto the header. Missing cells become "", cells past
// the header width are ignored and the first of duplicate headers wins.
func (r *tableReader) keyed(rec []string) map[string]string {
	m := make(map[string]string, len(r.header))
	for i, h := range r.header {
		if h == "" {
			continue
		}
		if _, seen := m[h]; seen {
			continue
		}
		if i < len(rec) {
			m[h] = rec[i]
		} else {
			m[h] = ""
		}
	}
	return m
}

func (r *tableReader) Close() error {
	return r.src.Close()
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// csvSource reads CSV with the BOM stripped and invalid UTF-8 replaced.
type csvSource struct {
	f *os.File
	r *csv.Reader
}

func openCSV(path string) (recordSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoded := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &csvSource{f: f, r: r}, nil
}

func (s *csvSource) Read() ([]string, error) { return s.r.Read() }
func (s *csvSource) Close() error            { return s.f.Close() }

// xlsxSource streams the first worksheet of a workbook.
type xlsxSource struct {
	f    *excelize.File
	rows *excelize.Rows
}

func openXLSX(path string) (recordSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open sheet %q", sheets[0])
	}
	return &xlsxSource{f: f, rows: rows}, nil
}

func (s *xlsxSource) Read() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns(excelize.Options{RawCellValue: true})
}

func (s *xlsxSource) Close() error {
	if err := s.rows.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
