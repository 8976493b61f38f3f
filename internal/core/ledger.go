package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerStore keeps ImportRun records in the import_runs table.
type LedgerStore struct {
	db DBTX
}

// NewLedgerStore creates a ledger backed by db.
func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

const runColumns = `id::text, source_name, started_at, ended_at, status, total_records,
	success_count, warning_count, failure_count, elapsed_seconds, error`

// Create inserts a new run in the processing state.
func (l *LedgerStore) Create(ctx context.Context, sourceName string, startedAt time.Time) (*ImportRun, error) {
	run := &ImportRun{
		ID:         uuid.New().String(),
		SourceName: sourceName,
		StartedAt:  startedAt,
		Status:     StatusProcessing,
	}

	_, err := l.db.Exec(ctx,
		`INSERT INTO import_runs (id, source_name, started_at, status) VALUES ($1::uuid, $2, $3, $4)`,
		run.ID, run.SourceName, run.StartedAt, run.Status)
	if err != nil {
		return nil, errors.Wrap(err, "create import run")
	}
	return run, nil
}

// Update persists the counters and status of a run that is still
// processing. Once a run reaches a terminal status it cannot be changed.
func (l *LedgerStore) Update(ctx context.Context, run *ImportRun) error {
	if !run.Status.Valid() {
		return errors.Newf("invalid run status %q", run.Status)
	}

	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}

	tag, err := l.db.Exec(ctx, `
		UPDATE import_runs
		SET status = $2, ended_at = $3, total_records = $4, success_count = $5,
			warning_count = $6, failure_count = $7, elapsed_seconds = $8, error = $9
		WHERE id = $1::uuid AND status = 'processing'`,
		run.ID, run.Status, run.EndedAt, run.TotalRecords, run.SuccessCount,
		run.WarningCount, run.FailureCount, run.ElapsedSeconds, runErr)
	if err != nil {
		return errors.Wrapf(err, "update import run %s", run.ID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := l.Get(ctx, run.ID); err != nil {
		return err
	}
	return errors.Wrapf(ErrRunFinalized, "run %s", run.ID)
}

// Get returns a run by id.
func (l *LedgerStore) Get(ctx context.Context, id string) (*ImportRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(ErrRunNotFound, "run %q", id)
	}

	row := l.db.QueryRow(ctx, "SELECT "+runColumns+" FROM import_runs WHERE id = $1::uuid", id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get import run %s", id)
	}
	return run, nil
}

// RunFilter narrows List. Zero values are ignored. StartDate and EndDate
// are inclusive calendar days on started_at.
type RunFilter struct {
	FileName   string
	Status     RunStatus
	StartDate  time.Time
	EndDate    time.Time
	MinSuccess *int
	MinFailure *int
}

func (f RunFilter) where() *WhereBuilder {
	wb := NewWhereBuilder()
	wb.AddContains("source_name", f.FileName)
	wb.Add("status", string(f.Status))

	var end time.Time
	if !f.EndDate.IsZero() {
		end = time.Date(f.EndDate.Year(), f.EndDate.Month(), f.EndDate.Day(), 0, 0, 0, 0, f.EndDate.Location()).AddDate(0, 0, 1)
	}
	var start time.Time
	if !f.StartDate.IsZero() {
		start = time.Date(f.StartDate.Year(), f.StartDate.Month(), f.StartDate.Day(), 0, 0, 0, 0, f.StartDate.Location())
	}
	wb.AddTimestampRange("started_at", start, end)

	wb.AddMin("success_count", f.MinSuccess)
	wb.AddMin("failure_count", f.MinFailure)
	return wb
}

// List returns runs matching filter, newest first.
func (l *LedgerStore) List(ctx context.Context, filter RunFilter, page, pageSize int) (*Page[ImportRun], error) {
	page, pageSize = normalizePage(page, pageSize)
	wb := filter.where()
	where, args := wb.Build()

	var count int64
	if err := l.db.QueryRow(ctx, "SELECT COUNT(*) FROM import_runs"+where, args...).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "count import runs")
	}

	query := "SELECT " + runColumns + " FROM import_runs" + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list import runs")
	}
	defer rows.Close()

	results := make([]ImportRun, 0, pageSize)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan import run")
		}
		results = append(results, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page[ImportRun]{
		Count:      count,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(count, pageSize),
		Results:    results,
	}, nil
}

// MarkStale fails every run that has been processing for longer than
// olderThan and returns how many were changed.
func (l *LedgerStore) MarkStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := l.db.Exec(ctx, `
		UPDATE import_runs
		SET status = 'failed', ended_at = NOW(),
			elapsed_seconds = EXTRACT(EPOCH FROM NOW() - started_at),
			error = 'run abandoned while processing'
		WHERE status = 'processing' AND started_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "mark stale runs")
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (*ImportRun, error) {
	var (
		run    ImportRun
		runErr *string
	)
	err := row.Scan(&run.ID, &run.SourceName, &run.StartedAt, &run.EndedAt, &run.Status,
		&run.TotalRecords, &run.SuccessCount, &run.WarningCount, &run.FailureCount,
		&run.ElapsedSeconds, &runErr)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		run.Error = *runErr
	}
	return &run, nil
}
