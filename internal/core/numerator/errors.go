package numerator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDocumentType is a caller error and is never retried.
	ErrInvalidDocumentType = errors.New("invalid document type")

	// ErrConflict means an optimistic update lost a race (or the store was busy).
	// The whole allocation may be retried.
	ErrConflict = errors.New("sequence update conflict")

	// ErrStoreUnavailable means the counter store could not be reached or failed.
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrCounterOverflow means an increment would leave the int64 range.
	// Stores report it together with ErrStoreUnavailable.
	ErrCounterOverflow = errors.New("sequence counter overflow")
)

// AddChecked returns cur+delta, or an error wrapping ErrCounterOverflow
// when the sum exceeds math.MaxInt64.
func AddChecked(cur, delta int64) (int64, error) {
	if delta > 0 && cur > math.MaxInt64-delta {
		return 0, fmt.Errorf("%w: %d + %d", ErrCounterOverflow, cur, delta)
	}
	return cur + delta, nil
}
