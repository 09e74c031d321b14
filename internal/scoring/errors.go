package scoring

import "errors"

var (
	// ErrNotFound means a referenced event, league or game type has no record.
	// Rating lookups never return it; they default instead.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is a concurrent rating update detected through a version
	// mismatch. The caller should retry the whole apply call.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrInvalidInput is a malformed submission (bad outcome combination,
	// wrong point sign, duplicate participant). Nothing was written.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyApplied means the match result is already reflected in the
	// ledger. Surfaced rather than swallowed so the caller can pick
	// idempotent-success or error semantics.
	ErrAlreadyApplied = errors.New("result already applied")
)
