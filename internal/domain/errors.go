package domain

import "errors"

// Catalog errors
var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrCatalogMalformed   = errors.New("catalog malformed")
)

// Repository synchronization errors
var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrDivergedLocalState = errors.New("local state diverged from remote")
	ErrRevisionNotFound   = errors.New("revision not found")
)

// Resolution errors
var (
	ErrNoMatchingChannel = errors.New("no matching channel")
	ErrAmbiguousLatest   = errors.New("ambiguous latest record")
)

// Document errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentMalformed = errors.New("document malformed")
)

// Validator errors
var (
	ErrValidatorMissing      = errors.New("validator missing")
	ErrValidatorLaunchFailed = errors.New("validator launch failed")
)

// Navigation errors
var (
	ErrEmptyDocument = errors.New("document has no selectable keys")
	ErrNotNavigable  = errors.New("value is not navigable")
)

// Recoverable reports whether err leaves the session usable with the
// existing local state, flagged as possibly stale.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrDivergedLocalState)
}
