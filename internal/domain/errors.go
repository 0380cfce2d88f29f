package domain

import "errors"

// Failure classes for one unit of work. Everything below the pipeline
// returns one of these (wrapped); the pipeline decides whether to skip.
var (
	// ErrTransientTransport means the transfer was interrupted part-way and
	// the same request may succeed if repeated.
	ErrTransientTransport = errors.New("transient transport fault")

	// ErrPermanentRequest means the request itself failed and repeating it
	// will not help.
	ErrPermanentRequest = errors.New("permanent request fault")

	// ErrGranuleNotFound means the archive has no granule for the
	// (date, satellite) pair. It is an expected, zero-observation outcome.
	ErrGranuleNotFound = errors.New("granule not found")

	// ErrRetriesExhausted means every allowed attempt hit a transient fault.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrDecode means the payload could not be read as a granule.
	ErrDecode = errors.New("decode granule")

	// ErrMatchNotFound means no ground sample lies within the time tolerance.
	ErrMatchNotFound = errors.New("no ground sample within tolerance")

	// ErrInvalidRow means a dataset row is missing a required field.
	ErrInvalidRow = errors.New("invalid dataset row")
)

// IsNoData reports whether err is one of the per-granule outcomes that the
// pipeline treats as "zero observations for this (date, satellite)".
func IsNoData(err error) bool {
	return errors.Is(err, ErrGranuleNotFound) ||
		errors.Is(err, ErrRetriesExhausted) ||
		errors.Is(err, ErrPermanentRequest) ||
		errors.Is(err, ErrTransientTransport) ||
		errors.Is(err, ErrDecode)
}
