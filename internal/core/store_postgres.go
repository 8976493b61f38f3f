package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the products table on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WithChunkTx implements ProductStore.
func (s *PostgresStore) WithChunkTx(ctx context.Context, fn func(ctx context.Context, tx ChunkTx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgChunkTx{tx: tx})
	})
}

// Count returns the number of stored products.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

type pgChunkTx struct {
	tx DBTX
}

func (t *pgChunkTx) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := t.tx.Query(ctx, "SELECT product_id FROM products WHERE product_id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(found))
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (t *pgChunkTx) InsertIgnore(ctx context.Context, products []*catalog.Product) ([]string, error) {
	names := make([]string, len(catalog.Columns))
	for i, c := range catalog.Columns {
		names[i] = c.Name
	}

	query, args := insertStatement(products, names)
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgChunkTx) UpdateColumns(ctx context.Context, products []*catalog.Product, columns []string) ([]string, error) {
	query, args := updateStatement(products, columns)
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// columnArrays turns products into one text array per column. A product
// that does not supply a column contributes NULL.
func columnArrays(products []*catalog.Product, columns []string) []any {
	arrays := make([][]*string, len(columns))
	for i := range arrays {
		arrays[i] = make([]*string, len(products))
	}
	for j, p := range products {
		values := p.Values()
		for i, name := range columns {
			if v, ok := values[name]; ok {
				arrays[i][j] = &v
			}
		}
	}

	args := make([]any, len(arrays))
	for i := range arrays {
		args[i] = arrays[i]
	}
	return args
}

// unnestSource renders "unnest($1::text[], ...) AS v(a, ...)" for columns.
func unnestSource(columns []string) string {
	params := make([]string, len(columns))
	aliases := make([]string, len(columns))
	for i, name := range columns {
		params[i] = fmt.Sprintf("$%d::text[]", i+1)
		aliases[i] = quoteIdent(name)
	}
	return fmt.Sprintf("unnest(%s) AS v(%s)", strings.Join(params, ", "), strings.Join(aliases, ", "))
}

func insertStatement(products []*catalog.Product, columns []string) (string, []any) {
	quoted := make([]string, len(columns))
	selects := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = quoteIdent(name)
		selects[i] = fmt.Sprintf("v.%s::%s", quoted[i], sqlType(name))
	}

	query := fmt.Sprintf(
		"INSERT INTO products (%s) SELECT %s FROM %s ON CONFLICT (product_id) DO NOTHING RETURNING product_id",
		strings.Join(quoted, ", "), strings.Join(selects, ", "), unnestSource(columns),
	)
	return query, columnArrays(products, columns)
}

func updateStatement(products []*catalog.Product, columns []string) (string, []any) {
	all := append([]string{"product_id"}, columns...)

	sets := make([]string, 0, len(columns)+1)
	for _, name := range columns {
		q := quoteIdent(name)
		sets = append(sets, fmt.Sprintf("%s = COALESCE(v.%s::%s, p.%s)", q, q, sqlType(name), q))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE products AS p SET %s FROM %s WHERE p.product_id = v.product_id RETURNING p.product_id",
		strings.Join(sets, ", "), unnestSource(all),
	)
	return query, columnArrays(products, all)
}

func sqlType(column string) string {
	for _, c := range catalog.Columns {
		if c.Name == column {
			return c.SQLType
		}
	}
	return "text"
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
