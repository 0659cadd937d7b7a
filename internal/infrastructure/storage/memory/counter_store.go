// Package memory provides an in-process CounterStore for single-process
// deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"docnum/internal/core/numerator"
)

type counter struct {
	lastIssued int64
	updatedAt  time.Time
}

// CounterStore keeps counters in a sharded concurrent map.
// Upsert callbacks run under the shard lock, which makes every mutation atomic.
type CounterStore struct {
	counters cmap.ConcurrentMap[string, counter]
	now      func() time.Time
}

// Ensure compile-time interface compliance.
var _ numerator.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates an empty store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counters: cmap.New[counter](),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IncrementAndGet implements numerator.CounterStore.
func (s *CounterStore) IncrementAndGet(ctx context.Context, t numerator.DocumentType, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("increment %s: %w: %w", t, numerator.ErrStoreUnavailable, err)
	}

	now := s.now()
	var overflow error
	res := s.counters.Upsert(string(t), counter{lastIssued: delta, updatedAt: now},
		func(exist bool, inMap, fresh counter) counter {
			if !exist {
				return fresh
			}
			next, err := numerator.AddChecked(inMap.lastIssued, fresh.lastIssued)
			if err != nil {
				overflow = err
				return inMap
			}
			return counter{lastIssued: next, updatedAt: now}
		})
	if overflow != nil {
		return 0, fmt.Errorf("increment %s: %w: %w", t, numerator.ErrStoreUnavailable, overflow)
	}
	return res.lastIssued, nil
}

// Raise implements numerator.CounterStore.
func (s *CounterStore) Raise(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("raise %s: %w: %w", t, numerator.ErrStoreUnavailable, err)
	}

	now := s.now()
	res := s.counters.Upsert(string(t), counter{lastIssued: floor, updatedAt: now},
		func(exist bool, inMap, fresh counter) counter {
			if !exist {
				return fresh
			}
			if inMap.lastIssued >= fresh.lastIssued {
				return inMap
			}
			return fresh
		})
	return res.lastIssued, nil
}

// Current implements numerator.CounterStore.
func (s *CounterStore) Current(ctx context.Context, t numerator.DocumentType) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("current %s: %w: %w", t, numerator.ErrStoreUnavailable, err)
	}

	c, _ := s.counters.Get(string(t))
	return c.lastIssued, nil
}

// List implements numerator.CounterStore.
func (s *CounterStore) List(ctx context.Context) ([]numerator.SequenceCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w: %w", numerator.ErrStoreUnavailable, err)
	}

	items := s.counters.Items()
	out := make([]numerator.SequenceCounter, 0, len(items))
	for key, c := range items {
		out = append(out, numerator.SequenceCounter{
			DocumentType: numerator.DocumentType(key),
			LastIssued:   c.lastIssued,
			UpdatedAt:    c.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentType < out[j].DocumentType })
	return out, nil
}

// Ping implements numerator.CounterStore.
func (s *CounterStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ping: %w: %w", numerator.ErrStoreUnavailable, err)
	}
	return nil
}

// Close implements numerator.CounterStore.
func (s *CounterStore) Close() error { return nil }
