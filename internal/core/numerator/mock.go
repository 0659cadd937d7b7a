package numerator

import (
	"context"
	"time"
)

// MockAllocator is a test implementation of Allocator.
// Use in caller unit tests to avoid store dependencies.
type MockAllocator struct {
	AllocateFunc  func(ctx context.Context, t DocumentType) (int64, error)
	AllocateNFunc func(ctx context.Context, t DocumentType, n int) ([]int64, error)
	NextFunc      func(ctx context.Context, t DocumentType) (Number, error)
}

// Allocate implements Allocator.
func (m *MockAllocator) Allocate(ctx context.Context, t DocumentType) (int64, error) {
	if m.AllocateFunc != nil {
		return m.AllocateFunc(ctx, t)
	}
	return 1, nil
}

// AllocateN implements Allocator.
func (m *MockAllocator) AllocateN(ctx context.Context, t DocumentType, n int) ([]int64, error) {
	if m.AllocateNFunc != nil {
		return m.AllocateNFunc(ctx, t, n)
	}
	nums := make([]int64, n)
	for i := range nums {
		nums[i] = int64(i + 1)
	}
	return nums, nil
}

// Next implements Allocator.
func (m *MockAllocator) Next(ctx context.Context, t DocumentType) (Number, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, t)
	}
	// Default: return predictable mock number
	return Number{
		DocumentType: t,
		Value:        1,
		Formatted:    FormatNumber(DefaultFormat(t), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 1),
	}, nil
}

// MockStore is a CounterStore whose behaviour is supplied per test.
// Unset funcs return zero values.
type MockStore struct {
	IncrementAndGetFunc func(ctx context.Context, t DocumentType, delta int64) (int64, error)
	RaiseFunc           func(ctx context.Context, t DocumentType, floor int64) (int64, error)
	CurrentFunc         func(ctx context.Context, t DocumentType) (int64, error)
	ListFunc            func(ctx context.Context) ([]SequenceCounter, error)
	PingFunc            func(ctx context.Context) error
}

// IncrementAndGet implements CounterStore.
func (m *MockStore) IncrementAndGet(ctx context.Context, t DocumentType, delta int64) (int64, error) {
	if m.IncrementAndGetFunc != nil {
		return m.IncrementAndGetFunc(ctx, t, delta)
	}
	return delta, nil
}

// Raise implements CounterStore.
func (m *MockStore) Raise(ctx context.Context, t DocumentType, floor int64) (int64, error) {
	if m.RaiseFunc != nil {
		return m.RaiseFunc(ctx, t, floor)
	}
	return floor, nil
}

// Current implements CounterStore.
func (m *MockStore) Current(ctx context.Context, t DocumentType) (int64, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx, t)
	}
	return 0, nil
}

// List implements CounterStore.
func (m *MockStore) List(ctx context.Context) ([]SequenceCounter, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

// Ping implements CounterStore.
func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close implements CounterStore.
func (m *MockStore) Close() error { return nil }

// Ensure compile-time interface compliance.
var (
	_ Allocator    = (*MockAllocator)(nil)
	_ CounterStore = (*MockStore)(nil)
)
