package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/metrics"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	mu        sync.Mutex
	saved     map[string]string
	submitted []string
	result    core.RunResult
	err       error
	limiter   *core.ImportLimiter
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{
		saved:   make(map[string]string),
		limiter: core.NewImportLimiter(2, time.Second),
		result:  core.RunResult{Success: true, RunID: "run-1", Total: 3, SuccessCount: 2, WarningCount: 1, FailureCount: 1, Elapsed: 1500 * time.Millisecond},
	}
}

func (f *fakeImporter) SaveUpload(name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "/uploads/x_" + name
	f.saved[path] = string(data)
	return path, nil
}

func (f *fakeImporter) Submit(_ context.Context, path, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, path)
	return "run-async", nil
}

func (f *fakeImporter) ProcessSync(context.Context, string, string) (core.RunResult, error) {
	return f.result, f.err
}

func (f *fakeImporter) Limiter() *core.ImportLimiter { return f.limiter }

type fakeRuns struct {
	runs       map[string]core.ImportRun
	lastFilter core.RunFilter
	lastPage   [2]int
}

func (f *fakeRuns) Get(_ context.Context, id string) (*core.ImportRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, errors.Wrapf(core.ErrRunNotFound, "run %s", id)
	}
	return &run, nil
}

func (f *fakeRuns) List(_ context.Context, filter core.RunFilter, page, pageSize int) (*core.Page[core.ImportRun], error) {
	f.lastFilter = filter
	f.lastPage = [2]int{page, pageSize}
	var out []core.ImportRun
	for _, r := range f.runs {
		out = append(out, r)
	}
	return &core.Page[core.ImportRun]{Count: int64(len(out)), Page: page, PageSize: pageSize, TotalPages: 1, Results: out}, nil
}

type fakeLogs struct {
	lastFilter core.LogFilter
}

func (f *fakeLogs) List(_ context.Context, filter core.LogFilter, page, pageSize int) (*core.Page[core.LogEntry], error) {
	f.lastFilter = filter
	return &core.Page[core.LogEntry]{Page: page, PageSize: pageSize, TotalPages: 1, Results: []core.LogEntry{}}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Import.MaxFileSize = 1 << 20
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Rate.Enabled = false
	return cfg
}

type testServer struct {
	*Server
	importer *fakeImporter
	runs     *fakeRuns
	logs     *fakeLogs
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	collector, err := metrics.NewCollector()
	require.NoError(t, err)

	ts := &testServer{
		importer: newFakeImporter(),
		runs:     &fakeRuns{runs: map[string]core.ImportRun{"run-1": {ID: "run-1", SourceName: "feed.csv", Status: core.StatusCompleted}}},
		logs:     &fakeLogs{},
	}
	ts.Server = NewServer(cfg, Deps{
		Importer: ts.importer,
		Runs:     ts.runs,
		Logs:     ts.logs,
		DB:       fakePinger{},
		Metrics:  collector,
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUpload_Sync(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(uploadRequest(t, "/api/upload", "feed.csv", "product_id\nA\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "feed.csv", resp.Filename)
	require.NotNil(t, resp.ProcessingResults)
	assert.Equal(t, 3, resp.ProcessingResults.TotalRecords)
	assert.Equal(t, 1, resp.ProcessingResults.WarningCount)
	assert.Equal(t, "1.50 seconds", resp.ProcessingResults.TimeTaken)
	assert.Equal(t, "product_id\nA\n", ts.importer.saved["/uploads/x_feed.csv"])
}

func TestUpload_SyncFailedRun(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.importer.result = core.RunResult{RunID: "run-2", Error: "no rows were imported"}

	rec := ts.do(uploadRequest(t, "/api/upload", "feed.csv", "product_id\n"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "no rows were imported", resp.Error)
	assert.Equal(t, "run-2", resp.RunID)
}

func TestUpload_Async(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(uploadRequest(t, "/api/upload?async=true", "feed.xlsx", "PK"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "run-async", resp["run_id"])
	assert.Equal(t, []string{"/uploads/x_feed.xlsx"}, ts.importer.submitted)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		importErr  error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unsupported extension",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "/api/upload", "feed.txt", "x") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				require.NoError(t, mw.WriteField("other", "x"))
				require.NoError(t, mw.Close())
				req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
				req.Header.Set("Content-Type", mw.FormDataContentType())
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL001",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/upload", "feed.csv", string(bytes.Repeat([]byte("a"), 2<<20)))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name:       "workers busy",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "/api/upload?async=1", "feed.csv", "x") },
			importErr:  core.ErrTooManyImports,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "IMP001",
		},
		{
			name:       "shutting down",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "/api/upload", "feed.csv", "x") },
			importErr:  core.ErrServiceClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "IMP003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, testConfig())
			ts.importer.err = tt.importErr

			rec := ts.do(tt.req(t))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestListRuns_Filters(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/api/analytics?file_name=feed&status=completed&start_date=2026-01-01&end_date=2026-01-31&min_success=5&min_failure=x&page=2&page_size=25", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f := ts.runs.lastFilter
	assert.Equal(t, "feed", f.FileName)
	assert.Equal(t, core.StatusCompleted, f.Status)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.StartDate)
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), f.EndDate)
	require.NotNil(t, f.MinSuccess)
	assert.Equal(t, 5, *f.MinSuccess)
	assert.Nil(t, f.MinFailure)
	assert.Equal(t, [2]int{2, 25}, ts.runs.lastPage)

	page := decode[core.Page[core.ImportRun]](t, rec)
	assert.Equal(t, int64(1), page.Count)
	assert.Equal(t, "feed.csv", page.Results[0].SourceName)
}

func TestListRuns_BadParams(t *testing.T) {
	ts := newTestServer(t, testConfig())

	for _, target := range []string{"/api/analytics?status=done", "/api/analytics?start_date=yesterday"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "VAL002", decode[ErrorResponse](t, rec).Code, target)
	}
}

func TestGetRun(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/run-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", decode[core.ImportRun](t, rec).ID)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code)
}

func TestListLogs_Filters(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/logs?level=warning&task_name=data_import&message=Row&created_at=2026-03-14", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f := ts.logs.lastFilter
	assert.Equal(t, core.LevelWarning, f.Level)
	assert.Equal(t, "data_import", f.TaskName)
	assert.Equal(t, "Row", f.Message)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), f.CreatedAt)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/logs?level=loud", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	imports := body["imports"].(map[string]any)
	assert.EqualValues(t, 2, imports["max_concurrent"])

	ts.deps.DB = fakePinger{err: errors.New("connection refused")}
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/run-1", nil))
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `catalogimport_http_requests_total{method="GET",route="/api/analytics/{id}",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	cfg.Rate.UploadLimit = 1
	ts := newTestServer(t, cfg)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "10.9.9.9:1234"
	assert.Equal(t, http.StatusOK, ts.do(other).Code, "buckets are per IP")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/analytics", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := ts.do(req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
