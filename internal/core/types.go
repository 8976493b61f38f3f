package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunStatus is the lifecycle state of an import run.
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	return s == StatusProcessing || s.Terminal()
}

// ImportRun is the ledger record for one import.
type ImportRun struct {
	ID             string     `json:"id"`
	SourceName     string     `json:"file_name"`
	StartedAt      time.Time  `json:"start_time"`
	EndedAt        *time.Time `json:"end_time,omitempty"`
	Status         RunStatus  `json:"status"`
	TotalRecords   int        `json:"total_records"`
	SuccessCount   int        `json:"success_count"`
	WarningCount   int        `json:"warning_count"`
	FailureCount   int        `json:"failure_count"`
	ElapsedSeconds float64    `json:"time_taken"`
	Error          string     `json:"error,omitempty"`
}

// RunResult is what callers of Process receive.
type RunResult struct {
	Success      bool          `json:"success"`
	RunID        string        `json:"run_id"`
	Total        int           `json:"total_records"`
	SuccessCount int           `json:"success_count"`
	WarningCount int           `json:"warning_count"`
	FailureCount int           `json:"failure_count"`
	Elapsed      time.Duration `json:"-"`
	Error        string        `json:"error,omitempty"`
}

// ElapsedSeconds returns Elapsed in fractional seconds.
func (r RunResult) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Level is the severity of a persisted event log entry.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// LogEntry is one append-only event log row.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	TaskName  string    `json:"task_name"`
	Traceback *string   `json:"traceback"`
	CreatedAt time.Time `json:"created_at"`
}

// Classification is the validator's verdict on one row.
type Classification string

const (
	Accepted             Classification = "accepted"
	AcceptedWithWarnings Classification = "accepted_with_warnings"
	Salvaged             Classification = "salvaged"
	Rejected             Classification = "rejected"
)

// Event is a log line produced while judging a row; the coordinator
// forwards it to the event log sink.
type Event struct {
	Level   Level
	Message string
}

// RowOutcome is the transient result of validating one row.
type RowOutcome struct {
	RowNumber      int
	Classification Classification
	FieldsDropped  []catalog.Field
	Errors         []*FieldError
	Events         []Event

	// Product is set for every outcome except Rejected.
	Product *catalog.Product
}

// Warned reports whether the row counts toward the warning total once written.
func (o *RowOutcome) Warned() bool {
	return o.Classification == Salvaged || o.Classification == AcceptedWithWarnings
}

// EventSink is the append-only log consumed by the pipeline.
type EventSink interface {
	Log(ctx context.Context, level Level, message, taskName string, cause error)
}

// RunLedger stores ImportRun records. The pipeline owns a run's record
// exclusively while it is processing.
type RunLedger interface {
	Create(ctx context.Context, sourceName string, startedAt time.Time) (*ImportRun, error)
	Update(ctx context.Context, run *ImportRun) error
}

// TaskName is the event log correlation key for imports of file.
func TaskName(file string) string {
	return "data_import_" + file
}
