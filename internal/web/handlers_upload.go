package web

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/cockroachdb/errors"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// UploadResponse is returned by a synchronous upload.
type UploadResponse struct {
	Status            string             `json:"status"`
	Message           string             `json:"message"`
	Filename          string             `json:"filename,omitempty"`
	RunID             string             `json:"run_id,omitempty"`
	ProcessingResults *ProcessingResults `json:"processing_results,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// ProcessingResults summarizes a finished run.
type ProcessingResults struct {
	TotalRecords int    `json:"total_records"`
	SuccessCount int    `json:"success_count"`
	WarningCount int    `json:"warning_count"`
	FailureCount int    `json:"failure_count"`
	TimeTaken    string `json:"time_taken"`
}

// handleUpload stores the multipart "file" field and imports it. With
// ?async=true the run is queued and its id returned at once.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, errors.Wrap(err, "file too large"), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, errors.Wrap(err, "no file provided"), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.Wrap(err, "no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !core.IsSupportedFormat(name) {
		respondError(w, r, errors.Wrapf(core.ErrUnsupportedFormat, "upload %q", name), http.StatusBadRequest)
		return
	}

	path, err := s.deps.Importer.SaveUpload(name, file)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	logger := logging.WithFields(r.Context(), "file", name, "size", header.Size)
	logger.Info("file uploaded", "path", path)
	if s.deps.Events != nil {
		s.deps.Events.Log(r.Context(), core.LevelInfo,
			fmt.Sprintf("File uploaded successfully: %s", name), "file_upload_"+filepath.Base(path), nil)
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		runID, err := s.deps.Importer.Submit(r.Context(), path, name)
		if err != nil {
			s.rejectRun(w, r, err)
			return
		}
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": string(core.StatusProcessing)})
		return
	}

	result, err := s.deps.Importer.ProcessSync(r.Context(), path, name)
	if err != nil {
		s.rejectRun(w, r, err)
		return
	}

	if !result.Success {
		logger.Warn("import failed", "run_id", result.RunID, "error", result.Error)
		writeJSONStatus(w, http.StatusInternalServerError, UploadResponse{
			Status:  "error",
			Message: "File uploaded but processing failed",
			RunID:   result.RunID,
			Error:   result.Error,
		})
		return
	}

	writeJSON(w, UploadResponse{
		Status:   "success",
		Message:  "File uploaded and processed successfully",
		Filename: name,
		RunID:    result.RunID,
		ProcessingResults: &ProcessingResults{
			TotalRecords: result.Total,
			SuccessCount: result.SuccessCount,
			WarningCount: result.WarningCount,
			FailureCount: result.FailureCount,
			TimeTaken:    fmt.Sprintf("%.2f seconds", result.ElapsedSeconds()),
		},
	})
}

// rejectRun reports a run that could not be started.
func (s *Server) rejectRun(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	respondError(w, r, err, status)
}
