package core

import "time"

// Accumulator holds one run's counters. It is owned by the goroutine
// processing the run and flushed to the ledger at each checkpoint.
type Accumulator struct {
	Total   int
	Success int
	Warning int
	Failure int

	started time.Time
}

func newAccumulator(started time.Time) *Accumulator {
	return &Accumulator{started: started}
}

// Read counts rows taken from the source.
func (a *Accumulator) Read(n int) { a.Total += n }

// Succeeded counts a written row; warned rows also count as warnings.
func (a *Accumulator) Succeeded(warned bool) {
	a.Success++
	if warned {
		a.Warning++
	}
}

// Failed counts n failed rows.
func (a *Accumulator) Failed(n int) { a.Failure += n }

// Unsettled is the number of rows read but not yet counted as succeeded or
// failed.
func (a *Accumulator) Unsettled() int { return a.Total - a.Success - a.Failure }

// Status is the terminal status the counters call for. A run fails only
// when it read rows and none of them were written.
func (a *Accumulator) Status() RunStatus {
	if a.Total > 0 && a.Success == 0 {
		return StatusFailed
	}
	return StatusCompleted
}

// Flush copies the counters onto run.
func (a *Accumulator) Flush(run *ImportRun, now time.Time) {
	run.TotalRecords = a.Total
	run.SuccessCount = a.Success
	run.WarningCount = a.Warning
	run.FailureCount = a.Failure
	run.ElapsedSeconds = now.Sub(a.started).Seconds()
}
