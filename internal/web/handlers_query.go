package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

// handleListRuns lists import runs. Filters: file_name, status, start_date,
// end_date, min_success, min_failure; paging via page and page_size.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := core.RunFilter{
		FileName:   q.Get("file_name"),
		Status:     core.RunStatus(q.Get("status")),
		MinSuccess: parseMinParam(r, "min_success"),
		MinFailure: parseMinParam(r, "min_failure"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, r, errors.Newf("invalid query parameter status=%q", filter.Status), http.StatusBadRequest)
		return
	}

	var err error
	if filter.StartDate, err = parseDateParam(r, "start_date"); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if filter.EndDate, err = parseDateParam(r, "end_date"); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	page, err := s.deps.Runs.List(r.Context(), filter, parseIntParam(r, "page", 1), parseIntParam(r, "page_size", core.DefaultPageSize))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, page)
}

// handleGetRun returns a single run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, run)
}

// handleListLogs lists event log entries. Filters: level, task_name,
// message, created_at; paging via page and page_size.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := core.LogFilter{
		Level:    core.Level(strings.ToUpper(q.Get("level"))),
		TaskName: q.Get("task_name"),
		Message:  q.Get("message"),
	}
	if filter.Level != "" && !filter.Level.Valid() {
		respondError(w, r, errors.Newf("invalid query parameter level=%q", q.Get("level")), http.StatusBadRequest)
		return
	}

	var err error
	if filter.CreatedAt, err = parseDateParam(r, "created_at"); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	page, err := s.deps.Logs.List(r.Context(), filter, parseIntParam(r, "page", 1), parseIntParam(r, "page_size", core.DefaultPageSize))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, page)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseMinParam returns nil unless the parameter is a non-negative integer.
func parseMinParam(r *http.Request, name string) *int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return nil
	}
	return &i
}

// parseDateParam accepts YYYY-MM-DD or RFC 3339. A missing parameter is the
// zero time.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, val); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, errors.Newf("invalid query parameter %s=%q", name, val)
	}
	return t, nil
}
