package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"docnum/internal/core/numerator"
)

func openTestStore(t *testing.T) (*CounterStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docnum.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestCounterStore_FreshSequence(t *testing.T) {
	re := require.New(t)
	s, _ := openTestStore(t)
	ctx := context.Background()

	v, err := s.IncrementAndGet(ctx, numerator.Invoice, 1)
	re.NoError(err)
	re.Equal(int64(1), v)

	v, err = s.IncrementAndGet(ctx, numerator.Invoice, 1)
	re.NoError(err)
	re.Equal(int64(2), v)

	v, err = s.IncrementAndGet(ctx, numerator.Quotation, 1)
	re.NoError(err)
	re.Equal(int64(1), v)
}

func TestCounterStore_ConcurrentContiguous(t *testing.T) {
	re := require.New(t)
	s, _ := openTestStore(t)

	ids := make([]int64, 100)
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for i := range ids {
		go func(i int) {
			defer wg.Done()
			v, err := s.IncrementAndGet(context.Background(), numerator.Quotation, 1)
			re.NoError(err)
			ids[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, v := range ids {
		re.Equal(int64(i+1), v)
	}
}

func TestCounterStore_SurvivesReopen(t *testing.T) {
	re := require.New(t)
	s, path := openTestStore(t)
	ctx := context.Background()

	_, err := s.IncrementAndGet(ctx, numerator.PayrollRun, 41)
	re.NoError(err)
	re.NoError(s.Close())

	reopened, err := Open(path)
	re.NoError(err)
	defer reopened.Close()

	v, err := reopened.IncrementAndGet(ctx, numerator.PayrollRun, 1)
	re.NoError(err)
	re.Equal(int64(42), v)
}

func TestCounterStore_RaiseCurrentList(t *testing.T) {
	re := require.New(t)
	s, _ := openTestStore(t)
	ctx := context.Background()

	cur, err := s.Current(ctx, numerator.SalesOrder)
	re.NoError(err)
	re.Zero(cur)

	v, err := s.Raise(ctx, numerator.SalesOrder, 500)
	re.NoError(err)
	re.Equal(int64(500), v)

	v, err = s.Raise(ctx, numerator.SalesOrder, 100)
	re.NoError(err)
	re.Equal(int64(500), v)

	_, err = s.IncrementAndGet(ctx, numerator.Inquiry, 2)
	re.NoError(err)

	list, err := s.List(ctx)
	re.NoError(err)
	re.Len(list, 2)
	re.Equal(numerator.Inquiry, list[0].DocumentType)
	re.Equal(int64(2), list[0].LastIssued)
	re.Equal(numerator.SalesOrder, list[1].DocumentType)
	re.Equal(int64(500), list[1].LastIssued)
	re.False(list[1].UpdatedAt.IsZero())

	re.NoError(s.Ping(ctx))
}

func TestCounterStore_IncrementOverflow(t *testing.T) {
	re := require.New(t)
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.Raise(ctx, numerator.Invoice, math.MaxInt64-1)
	re.NoError(err)

	v, err := s.IncrementAndGet(ctx, numerator.Invoice, 1)
	re.NoError(err)
	re.Equal(int64(math.MaxInt64), v)

	_, err = s.IncrementAndGet(ctx, numerator.Invoice, 1)
	re.ErrorIs(err, numerator.ErrCounterOverflow)
	re.ErrorIs(err, numerator.ErrStoreUnavailable)

	cur, err := s.Current(ctx, numerator.Invoice)
	re.NoError(err)
	re.Equal(int64(math.MaxInt64), cur)
}

func TestClassify(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	re := require.New(t)

	re.True(errors.Is(classify("increment", numerator.Invoice, busy), numerator.ErrConflict))
	re.True(errors.Is(classify("increment", numerator.Invoice, errors.New("disk I/O error")), numerator.ErrStoreUnavailable))
}
