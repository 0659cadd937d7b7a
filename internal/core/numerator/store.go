package numerator

import "context"

// CounterStore provides durable, atomic mutation of sequence counters.
//
// Every write is a single atomic primitive at the storage layer; there is no Set.
// Errors must wrap ErrConflict or ErrStoreUnavailable.
type CounterStore interface {
	// IncrementAndGet adds delta (>= 1) to the counter, creating it at 0 when
	// absent, and returns the new value.
	IncrementAndGet(ctx context.Context, t DocumentType, delta int64) (int64, error)

	// Raise sets the counter to max(current, floor) and returns the result.
	Raise(ctx context.Context, t DocumentType, floor int64) (int64, error)

	// Current returns the last issued value, or 0 when the counter does not exist.
	Current(ctx context.Context, t DocumentType) (int64, error)

	// List returns every persisted counter ordered by document type.
	List(ctx context.Context) ([]SequenceCounter, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// Allocator is the contract caller services depend on.
type Allocator interface {
	// Allocate reserves and returns the next number of t's sequence.
	// A returned number is consumed even if the caller fails to use it.
	Allocate(ctx context.Context, t DocumentType) (int64, error)

	// AllocateN reserves n contiguous numbers in one atomic step.
	AllocateN(ctx context.Context, t DocumentType, n int) ([]int64, error)

	// Next allocates a number and formats it for display.
	Next(ctx context.Context, t DocumentType) (Number, error)
}
