package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/cockroachdb/errors"
)

// Recorder receives import telemetry.
type Recorder interface {
	RunStarted()
	RunFinished(status RunStatus, elapsed time.Duration)
	RowsObserved(outcome string, n int)
	ChunkWritten(elapsed time.Duration, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted()                          {}
func (nopRecorder) RunFinished(RunStatus, time.Duration) {}
func (nopRecorder) RowsObserved(string, int)             {}
func (nopRecorder) ChunkWritten(time.Duration, int)      {}

// Row outcomes reported to the Recorder besides the validator's
// classifications.
const (
	OutcomeWriteFailed = "write_failed"
)

// ImporterConfig tunes an Importer.
type ImporterConfig struct {
	ChunkSize       int
	DefaultCurrency string
	Retry           RetryPolicy
}

// Importer runs the import pipeline for one source at a time. It holds no
// per-run state and is safe for concurrent use.
type Importer struct {
	cfg       ImporterConfig
	validator *Validator
	engine    *UpsertEngine
	events    EventSink
	ledger    RunLedger
	recorder  Recorder
	now       func() time.Time
}

// NewImporter wires the pipeline. recorder may be nil.
func NewImporter(store ProductStore, ledger RunLedger, events EventSink, recorder Recorder, cfg ImporterConfig) *Importer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Importer{
		cfg:       cfg,
		validator: NewValidator(cfg.DefaultCurrency),
		engine:    NewUpsertEngine(store, cfg.Retry),
		events:    events,
		ledger:    ledger,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Process imports the file at path, using its base name as the source
// name. Callers always get a result; failures are reported in it.
func (im *Importer) Process(ctx context.Context, path string) RunResult {
	run, err := im.Begin(ctx, filepath.Base(path))
	if err != nil {
		return RunResult{Success: false, Error: err.Error()}
	}
	return im.Execute(ctx, run, path)
}

// Begin creates the ledger record for a run in the processing state.
func (im *Importer) Begin(ctx context.Context, sourceName string) (*ImportRun, error) {
	run, err := im.ledger.Create(ctx, sourceName, im.now())
	if err != nil {
		return nil, errors.Wrap(err, "create import run")
	}
	return run, nil
}

// runState is everything scoped to a single Execute call.
type runState struct {
	run    *ImportRun
	task   string
	acc    *Accumulator
	logger *slog.Logger
	header *HeaderMap
}

// Execute processes path chunk by chunk for a run created by Begin and
// moves the run to its terminal status.
func (im *Importer) Execute(ctx context.Context, run *ImportRun, path string) (result RunResult) {
	st := &runState{
		run:    run,
		task:   TaskName(run.SourceName),
		acc:    newAccumulator(run.StartedAt),
		logger: logging.ForRun(ctx, run.ID, run.SourceName),
	}

	im.recorder.RunStarted()
	im.events.Log(ctx, LevelInfo, fmt.Sprintf("Starting import of %s", run.SourceName), st.task, nil)

	reader, err := OpenSource(path, im.cfg.ChunkSize)
	if err != nil {
		return im.abort(ctx, st, nil, err)
	}
	defer reader.Close()

	defer func() {
		if p := recover(); p != nil {
			st.logger.Error("import panicked", "panic", p)
			result = im.abort(ctx, st, reader, errors.Newf("panic during import: %v", p))
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return im.abort(ctx, st, reader, errors.Wrap(err, "import interrupted"))
		}

		chunk, err := reader.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return im.abort(ctx, st, reader, err)
		}

		im.processChunk(ctx, st, chunk)

		if err := im.checkpoint(ctx, st); err != nil {
			return im.abort(ctx, st, reader, err)
		}
	}

	return im.finish(ctx, st, st.acc.Status(), nil)
}

func (im *Importer) processChunk(ctx context.Context, st *runState, chunk *Chunk) {
	if st.header == nil {
		st.header = NewHeaderMap(chunk.Header)
		if unknown := st.header.Unknown(); len(unknown) > 0 {
			im.events.Log(ctx, LevelWarning,
				fmt.Sprintf("Ignoring unknown columns: %s", strings.Join(unknown, ", ")), st.task, nil)
		}
	}

	first, last := chunk.Rows[0].Number, chunk.Rows[len(chunk.Rows)-1].Number
	label := fmt.Sprintf("Chunk %d (rows %d-%d)", chunk.Index+1, first, last)
	im.events.Log(ctx, LevelDebug, fmt.Sprintf("Processing %s: %d rows", label, len(chunk.Rows)), st.task, nil)
	st.acc.Read(len(chunk.Rows))

	valid := make([]*RowOutcome, 0, len(chunk.Rows))
	for _, raw := range chunk.Rows {
		out := im.validator.Validate(Normalize(st.header, raw))
		for _, ev := range out.Events {
			im.events.Log(ctx, ev.Level, ev.Message, st.task, nil)
		}
		if out.Classification == Rejected {
			st.acc.Failed(1)
			im.recorder.RowsObserved(string(Rejected), 1)
			continue
		}
		valid = append(valid, out)
	}
	if len(valid) == 0 {
		return
	}

	products := make([]*catalog.Product, len(valid))
	for i, out := range valid {
		products[i] = out.Product
	}

	started := im.now()
	write, err := im.engine.Write(ctx, products, func(attempt int, backoff time.Duration, err error) {
		im.events.Log(ctx, LevelWarning,
			fmt.Sprintf("%s: transient database error, retry %d in %s", label, attempt, backoff.Round(time.Millisecond)),
			st.task, err)
	})
	if err != nil {
		st.acc.Failed(len(valid))
		im.recorder.RowsObserved(OutcomeWriteFailed, len(valid))
		im.events.Log(ctx, LevelError,
			fmt.Sprintf("%s: bulk write failed, %d rows counted as failed: %v", label, len(valid), err),
			st.task, err)
		return
	}
	im.recorder.ChunkWritten(im.now().Sub(started), write.Attempts)

	excluded := make(map[int]bool, len(write.Excluded))
	for _, i := range write.Excluded {
		excluded[i] = true
	}

	for i, out := range valid {
		switch {
		case excluded[i]:
			st.acc.Failed(1)
			im.recorder.RowsObserved(OutcomeWriteFailed, 1)
			im.events.Log(ctx, LevelError,
				fmt.Sprintf("Row %d: Missing product id, title or price at write time", out.RowNumber), st.task, nil)
		case !write.Written[out.Product.ProductID]:
			st.acc.Failed(1)
			im.recorder.RowsObserved(OutcomeWriteFailed, 1)
		default:
			st.acc.Succeeded(out.Warned())
			im.recorder.RowsObserved(string(out.Classification), 1)
			im.events.Log(ctx, LevelInfo,
				fmt.Sprintf("Row %d: Successfully imported product %s", out.RowNumber, out.Product.ProductID), st.task, nil)
		}
	}

	if write.Shortfall > 0 {
		im.events.Log(ctx, LevelWarning,
			fmt.Sprintf("%s: %d of %d products were not confirmed by the database", label, write.Shortfall, write.Intended),
			st.task, nil)
	}

	st.logger.Debug("chunk written", "chunk", chunk.Index+1, "created", write.Created, "updated", write.Updated,
		"shortfall", write.Shortfall, "attempts", write.Attempts)
}

// checkpoint persists running totals. Only a run that was finalized
// elsewhere stops the import; other ledger errors are logged.
func (im *Importer) checkpoint(ctx context.Context, st *runState) error {
	st.acc.Flush(st.run, im.now())
	err := im.ledger.Update(context.WithoutCancel(ctx), st.run)
	if errors.Is(err, ErrRunFinalized) {
		return err
	}
	if err != nil {
		st.logger.Warn("ledger checkpoint failed", "error", err)
	}
	return nil
}

// abort ends the run as failed. Rows of an interrupted chunk and rows
// still unread are counted as failed, the latter when the reader can be
// drained.
func (im *Importer) abort(ctx context.Context, st *runState, reader ChunkReader, cause error) RunResult {
	if n := st.acc.Unsettled(); n > 0 {
		st.acc.Failed(n)
		im.recorder.RowsObserved(OutcomeWriteFailed, n)
	}
	if reader != nil && !IsSourceFormat(cause) {
		if n := drain(reader); n > 0 {
			st.acc.Read(n)
			st.acc.Failed(n)
		}
	}
	im.events.Log(ctx, LevelCritical,
		fmt.Sprintf("Import of %s failed: %v", st.run.SourceName, cause), st.task, cause)
	return im.finish(ctx, st, StatusFailed, cause)
}

func drain(reader ChunkReader) int {
	n := 0
	for {
		chunk, err := reader.Next(context.Background())
		if err != nil {
			return n
		}
		n += len(chunk.Rows)
	}
}

func (im *Importer) finish(ctx context.Context, st *runState, status RunStatus, cause error) RunResult {
	now := im.now()
	st.acc.Flush(st.run, now)
	st.run.Status = status
	st.run.EndedAt = &now

	switch {
	case cause != nil:
		st.run.Error = cause.Error()
	case status == StatusFailed:
		st.run.Error = "no rows were imported"
	}

	if err := im.ledger.Update(context.WithoutCancel(ctx), st.run); err != nil {
		st.logger.Error("failed to finalize import run", "error", err)
	}

	elapsed := now.Sub(st.run.StartedAt)
	im.recorder.RunFinished(status, elapsed)
	im.events.Log(ctx, LevelInfo, fmt.Sprintf(
		"Import of %s %s: %d total, %d succeeded, %d warnings, %d failed in %.2fs",
		st.run.SourceName, status, st.acc.Total, st.acc.Success, st.acc.Warning, st.acc.Failure, elapsed.Seconds(),
	), st.task, nil)

	return RunResult{
		Success:      status == StatusCompleted,
		RunID:        st.run.ID,
		Total:        st.acc.Total,
		SuccessCount: st.acc.Success,
		WarningCount: st.acc.Warning,
		FailureCount: st.acc.Failure,
		Elapsed:      elapsed,
		Error:        st.run.Error,
	}
}
