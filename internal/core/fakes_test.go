package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ProductStore with transactional semantics: a
// chunk's changes become visible only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	products map[string]map[string]string

	// transientFailures makes the next N transactions fail with a
	// serialization error before fn runs.
	transientFailures int

	// insertErr, when set, is consulted on every InsertIgnore call
	// (1-based) and may fail it.
	insertErr   func(call int) error
	insertCalls int

	// raced ids are inserted by "another run" right before InsertIgnore.
	raced map[string]map[string]string

	attempts int
}

func newMemStore() *memStore {
	return &memStore{products: make(map[string]map[string]string)}
}

func (s *memStore) WithChunkTx(ctx context.Context, fn func(ctx context.Context, tx ChunkTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.transientFailures > 0 {
		s.transientFailures--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}

	staged := make(map[string]map[string]string, len(s.products))
	for id, cols := range s.products {
		staged[id] = maps.Clone(cols)
	}
	if err := fn(ctx, &memTx{store: s, staged: staged}); err != nil {
		return err
	}
	s.products = staged
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products)
}

func (s *memStore) get(id string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

type memTx struct {
	store  *memStore
	staged map[string]map[string]string
}

func (t *memTx) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := t.staged[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (t *memTx) InsertIgnore(_ context.Context, products []*catalog.Product) ([]string, error) {
	t.store.insertCalls++
	if t.store.insertErr != nil {
		if err := t.store.insertErr(t.store.insertCalls); err != nil {
			return nil, err
		}
	}
	for id, cols := range t.store.raced {
		t.staged[id] = cols
	}

	var inserted []string
	for _, p := range products {
		if _, exists := t.staged[p.ProductID]; exists {
			continue
		}
		t.staged[p.ProductID] = p.Values()
		inserted = append(inserted, p.ProductID)
	}
	return inserted, nil
}

func (t *memTx) UpdateColumns(_ context.Context, products []*catalog.Product, columns []string) ([]string, error) {
	var updated []string
	for _, p := range products {
		row, ok := t.staged[p.ProductID]
		if !ok {
			continue
		}
		values := p.Values()
		for _, c := range columns {
			if v, ok := values[c]; ok {
				row[c] = v
			}
		}
		updated = append(updated, p.ProductID)
	}
	return updated, nil
}

// memLedger keeps runs in memory and enforces terminal statuses.
type memLedger struct {
	mu      sync.Mutex
	runs    map[string]ImportRun
	updates []ImportRun
	seq     int
}

func newMemLedger() *memLedger {
	return &memLedger{runs: make(map[string]ImportRun)}
}

func (l *memLedger) Create(_ context.Context, sourceName string, startedAt time.Time) (*ImportRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	run := ImportRun{
		ID:         fmt.Sprintf("run-%d", l.seq),
		SourceName: sourceName,
		StartedAt:  startedAt,
		Status:     StatusProcessing,
	}
	l.runs[run.ID] = run
	return &run, nil
}

func (l *memLedger) Update(_ context.Context, run *ImportRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	if stored.Status.Terminal() {
		return errors.Wrapf(ErrRunFinalized, "run %s", run.ID)
	}
	l.runs[run.ID] = *run
	l.updates = append(l.updates, *run)
	return nil
}

func (l *memLedger) get(id string) ImportRun {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs[id]
}

func (l *memLedger) MarkStale(_ context.Context, olderThan time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	cutoff := time.Now().Add(-olderThan)
	for id, run := range l.runs {
		if run.Status == StatusProcessing && run.StartedAt.Before(cutoff) {
			run.Status = StatusFailed
			run.Error = "run abandoned while processing"
			l.runs[id] = run
			n++
		}
	}
	return n, nil
}

type sinkEntry struct {
	Level   Level
	Message string
	Task    string
	Cause   error
}

// memSink records every event.
type memSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

func (s *memSink) Log(_ context.Context, level Level, message, taskName string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, sinkEntry{level, message, taskName, cause})
}

func (s *memSink) at(level Level) []sinkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []sinkEntry
	for _, e := range s.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (s *memSink) containing(level Level, substr string) []sinkEntry {
	var out []sinkEntry
	for _, e := range s.at(level) {
		if strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// fullHeader is every required and recommended column.
var fullHeader = []string{
	"product_id", "title", "description", "link", "image_link", "availability", "price",
	"condition", "brand", "gtin", "sale_price", "item_group_id", "google_product_category",
	"product_type", "shipping", "additional_image_links", "size", "color", "material",
	"pattern", "gender", "model",
}

// productRow returns a fully valid row for fullHeader.
func productRow(id, price string) []string {
	return []string{
		id, "Product " + id, "A fine product", "https://shop.example/p/" + id,
		"https://shop.example/img/" + id + ".jpg", "in_stock", price, "new", "Acme",
		"4006381333931", "9.99 EUR", "group-1", "Apparel", "Shirts", "DE:4.95 EUR",
		"https://shop.example/img/" + id + "-2.jpg", "M", "blue", "cotton", "plain", "unisex", "M-1",
	}
}

// requiredHeader is just the required columns.
var requiredHeader = []string{
	"product_id", "title", "description", "link", "image_link", "availability", "price",
	"condition", "brand", "gtin",
}

func requiredRow(id, title, price, gtin string) []string {
	return []string{
		id, title, "desc", "https://shop.example/p/" + id, "https://shop.example/i/" + id + ".jpg",
		"in_stock", price, "new", "Acme", gtin,
	}
}

func writeCSV(t *testing.T, name string, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, f.Close())
	return path
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

type testPipeline struct {
	store    *memStore
	ledger   *memLedger
	sink     *memSink
	importer *Importer
}

func newTestPipeline(chunkSize int) *testPipeline {
	p := &testPipeline{store: newMemStore(), ledger: newMemLedger(), sink: &memSink{}}
	p.importer = NewImporter(p.store, p.ledger, p.sink, nil, ImporterConfig{
		ChunkSize:       chunkSize,
		DefaultCurrency: "EUR",
		Retry:           fastRetry(),
	})
	return p
}
