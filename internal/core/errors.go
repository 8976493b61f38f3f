package core

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// Source-format errors are fatal to a run.
var (
	ErrSourceFormat      = errors.New("source format error")
	ErrEmptySource       = errors.Wrap(ErrSourceFormat, "source contains no data rows")
	ErrUnsupportedFormat = errors.Wrap(ErrSourceFormat, "unsupported file format")
)

// Run and scheduling errors.
var (
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")
	ErrRunNotFound    = errors.New("import run not found")
	ErrRunFinalized   = errors.New("import run already finalized")
	ErrServiceClosed  = errors.New("import service is shutting down")
)

// IsSourceFormat reports whether err is a source-format error.
func IsSourceFormat(err error) bool {
	return errors.Is(err, ErrSourceFormat)
}

// IsTransient reports whether err is worth retrying at the chunk boundary:
// lost connections, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "57P01":
			return true
		}
		return false
	}

	if pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}
