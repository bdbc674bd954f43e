package cin

import "errors"

var (
	// ErrNoMatch reports that a loaded table has no entry for a code.
	ErrNoMatch = errors.New("cin: no match")

	// ErrTableNotReady reports that the table for a scheme is still loading,
	// or that the handle holds a different (or stale) scheme.
	ErrTableNotReady = errors.New("cin: table not ready")

	// ErrTableMissing reports that the table file for a scheme does not exist.
	ErrTableMissing = errors.New("cin: table missing")
)
