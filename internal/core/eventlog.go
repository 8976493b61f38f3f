package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

// EventLog is the append-only import_logs table. Every entry is also
// written to the process logger.
type EventLog struct {
	db     DBTX
	logger *slog.Logger
}

// NewEventLog creates an event log backed by db. A nil logger uses
// slog.Default().
func NewEventLog(db DBTX, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{db: db, logger: logger}
}

// SlogLevel maps an event level onto slog.
func SlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError, LevelCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Log implements EventSink. A failed insert is reported to the process
// logger and otherwise ignored so logging never aborts an import.
func (e *EventLog) Log(ctx context.Context, level Level, message, taskName string, cause error) {
	var traceback *string
	attrs := []any{"task", taskName, "level", string(level)}
	if cause != nil {
		tb := fmt.Sprintf("%+v", cause)
		traceback = &tb
		attrs = append(attrs, "error", cause)
	}
	e.logger.Log(ctx, SlogLevel(level), message, attrs...)

	// Entries written during a cancelled run must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := e.db.Exec(writeCtx,
		`INSERT INTO import_logs (level, message, task_name, traceback) VALUES ($1, $2, $3, $4)`,
		level, message, taskName, traceback)
	if err != nil {
		e.logger.Error("failed to persist import log entry", "task", taskName, "error", err)
	}
}

// LogFilter narrows List. Zero values are ignored. CreatedAt matches the
// whole calendar day.
type LogFilter struct {
	Level     Level
	TaskName  string
	Message   string
	CreatedAt time.Time
}

// List returns log entries matching filter, newest first.
func (e *EventLog) List(ctx context.Context, filter LogFilter, page, pageSize int) (*Page[LogEntry], error) {
	page, pageSize = normalizePage(page, pageSize)

	wb := NewWhereBuilder()
	wb.Add("level", string(filter.Level))
	wb.AddContains("task_name", filter.TaskName)
	wb.AddContains("message", filter.Message)
	wb.AddDay("created_at", filter.CreatedAt)
	where, args := wb.Build()

	var count int64
	if err := e.db.QueryRow(ctx, "SELECT COUNT(*) FROM import_logs"+where, args...).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "count import logs")
	}

	query := "SELECT id, level, message, task_name, traceback, created_at FROM import_logs" + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list import logs")
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LogEntry, error) {
		var le LogEntry
		err := row.Scan(&le.ID, &le.Level, &le.Message, &le.TaskName, &le.Traceback, &le.CreatedAt)
		return le, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan import logs")
	}

	return &Page[LogEntry]{
		Count:      count,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(count, pageSize),
		Results:    results,
	}, nil
}
