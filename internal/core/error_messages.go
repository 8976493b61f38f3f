package core

// error_messages.go maps technical errors to stable, user-facing messages.
//
// Codes are grouped by category:
//
//	DB002-DB099    database (constraints, connectivity, timeouts)
//	FILE001-FILE099 source files (format, size, emptiness)
//	IMP001-IMP099  import runs (capacity, lookup, shutdown)
//	VAL001-VAL099  request validation
//
// Sentinel errors are matched with errors.Is first; everything else falls
// back to substring patterns. Hints attached with errors.WithHint replace the
// default action text.

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// UserMessage is a client-safe rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrEmptySource, UserMessage{"The file contains no data rows", "Add at least one product row below the header", "FILE003"}},
	{ErrUnsupportedFormat, UserMessage{"Unsupported file format", "Upload a .csv or .xlsx file", "FILE002"}},
	{ErrSourceFormat, UserMessage{"The file could not be read as a table", "Check that the file is a valid CSV or Excel workbook", "FILE004"}},
	{ErrTooManyImports, UserMessage{"Too many imports are running", "Please try again in a few moments", "IMP001"}},
	{ErrRunNotFound, UserMessage{"Import run not found", "Check the run id", "IMP002"}},
	{ErrServiceClosed, UserMessage{"The importer is shutting down", "Retry once the service is back", "IMP003"}},
	{ErrRunFinalized, UserMessage{"The import run has already finished", "", "IMP004"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"violates check constraint", UserMessage{"A value was rejected by the database", "Review the failing rows in the import log", "DB002"}},
	{"value too long", UserMessage{"A value is longer than the column allows", "Shorten the value and re-import", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadline exceeded", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller parts", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller parts", "FILE001"}},
	{"no file provided", UserMessage{"No file provided", "Attach the file in the 'file' form field", "VAL001"}},
	{"invalid query parameter", UserMessage{"Invalid query parameter", "Check the filter values", "VAL002"}},
	{"rate limit", UserMessage{"Too many requests", "Wait a minute before retrying", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the import log",
	Code:    "ERR001",
}

// MapError converts an error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	msg, ok := lookupMessage(err)
	if !ok {
		msg = defaultMessage
	}
	if hint := errors.FlattenHints(err); hint != "" {
		msg.Action = hint
	}
	return msg
}

func lookupMessage(err error) (UserMessage, bool) {
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg, true
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders an error as "message (code)".
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	m := MapError(err)
	return m.Message + " (" + m.Code + ")"
}

// IsUserFacing reports whether err maps to a specific user message rather
// than the generic fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	_, ok := lookupMessage(err)
	return ok
}
