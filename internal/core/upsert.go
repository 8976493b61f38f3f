package core

import (
	"context"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/cockroachdb/errors"
)

// ProductStore runs chunk reconciliation inside one transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type ProductStore interface {
	WithChunkTx(ctx context.Context, fn func(ctx context.Context, tx ChunkTx) error) error
}

// ChunkTx is the set of bulk statements a chunk needs.
type ChunkTx interface {
	// ExistingIDs returns the subset of ids already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// InsertIgnore inserts products, skipping natural-key conflicts, and
	// returns the ids actually inserted.
	InsertIgnore(ctx context.Context, products []*catalog.Product) ([]string, error)

	// UpdateColumns overwrites columns for stored products and returns the
	// ids actually updated. A product that does not supply a column keeps
	// its stored value.
	UpdateColumns(ctx context.Context, products []*catalog.Product, columns []string) ([]string, error)
}

// ChunkWrite reports what one chunk reconciliation did.
type ChunkWrite struct {
	// Intended is the number of distinct products that should be written.
	Intended int
	Created  int
	Updated  int

	// Written holds the ids the store confirmed.
	Written map[string]bool

	// Excluded are indices of input products that failed the pre-write
	// check (no id, title or price).
	Excluded []int

	// Shortfall is Intended minus confirmed writes.
	Shortfall int

	// Attempts is the number of transaction attempts made.
	Attempts int
}

// UpsertEngine reconciles validated products against the store one chunk
// at a time.
type UpsertEngine struct {
	store  ProductStore
	policy RetryPolicy
}

// NewUpsertEngine creates an engine that retries transient store errors
// according to policy.
func NewUpsertEngine(store ProductStore, policy RetryPolicy) *UpsertEngine {
	return &UpsertEngine{store: store, policy: policy}
}

// Write creates or updates products in one transaction. When the same id
// appears more than once the last occurrence wins. On error nothing from
// this chunk was committed. observe, when non-nil, is told about retried
// attempts.
func (e *UpsertEngine) Write(ctx context.Context, products []*catalog.Product, observe RetryObserver) (*ChunkWrite, error) {
	var excluded []int
	last := make(map[string]int, len(products))
	for i, p := range products {
		if p == nil || p.ProductID == "" || p.Title == "" || p.Price.Amount == "" {
			excluded = append(excluded, i)
			continue
		}
		last[p.ProductID] = i
	}

	batch := make([]*catalog.Product, 0, len(last))
	for i, p := range products {
		if p == nil {
			continue
		}
		if j, ok := last[p.ProductID]; ok && j == i {
			batch = append(batch, p)
		}
	}

	var result *ChunkWrite
	attempts := 0
	if len(batch) > 0 {
		err := Retry(ctx, e.policy, observe, func(ctx context.Context) error {
			attempts++
			return e.store.WithChunkTx(ctx, func(ctx context.Context, tx ChunkTx) error {
				w, err := reconcile(ctx, tx, batch)
				if err != nil {
					return err
				}
				result = w
				return nil
			})
		})
		if err != nil {
			return nil, errors.Wrapf(err, "write %d products", len(batch))
		}
	} else {
		result = &ChunkWrite{Written: map[string]bool{}}
	}

	result.Excluded = excluded
	result.Attempts = attempts
	return result, nil
}

func reconcile(ctx context.Context, tx ChunkTx, batch []*catalog.Product) (*ChunkWrite, error) {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ProductID
	}

	existing, err := tx.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lookup existing products")
	}

	var creates, updates []*catalog.Product
	for _, p := range batch {
		if existing[p.ProductID] {
			updates = append(updates, p)
		} else {
			creates = append(creates, p)
		}
	}

	w := &ChunkWrite{Intended: len(batch), Written: make(map[string]bool, len(batch))}

	if len(creates) > 0 {
		inserted, err := tx.InsertIgnore(ctx, creates)
		if err != nil {
			return nil, errors.Wrap(err, "bulk insert")
		}
		for _, id := range inserted {
			w.Written[id] = true
		}
		w.Created = len(inserted)

		// A concurrent run inserted these first; apply them as updates.
		for _, p := range creates {
			if !w.Written[p.ProductID] {
				updates = append(updates, p)
			}
		}
	}

	if len(updates) > 0 {
		updated, err := tx.UpdateColumns(ctx, updates, UpdateColumnSet(updates))
		if err != nil {
			return nil, errors.Wrap(err, "bulk update")
		}
		for _, id := range updated {
			if !w.Written[id] {
				w.Written[id] = true
				w.Updated++
			}
		}
	}

	w.Shortfall = w.Intended - len(w.Written)
	return w, nil
}

// UpdateColumnSet is the union of columns supplied by products, in
// catalog.Columns order, without product_id.
func UpdateColumnSet(products []*catalog.Product) []string {
	seen := make(map[string]bool)
	for _, p := range products {
		for name := range p.Values() {
			seen[name] = true
		}
	}

	cols := make([]string, 0, len(seen))
	for _, c := range catalog.Columns {
		if c.Name != "product_id" && seen[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}
