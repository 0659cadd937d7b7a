// Package etcd provides a CounterStore backed by etcd compare-and-swap transactions.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"docnum/internal/core/numerator"
)

const _keySeparator = "/"

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "/docnum/sequences"

// Config holds etcd connection settings.
type Config struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration
}

// CounterStore keeps each counter as a decimal value under <prefix>/<type>.
//
// Every mutation is a single transaction guarded by the key's mod revision
// (or create revision 0 when the key is absent). A lost race is reported as
// numerator.ErrConflict and never retried here.
//
// Mutations of one type are serialized in-process, so only writers in other
// processes can make the compare fail.
type CounterStore struct {
	kv     clientv3.KV
	client *clientv3.Client
	prefix string

	mu    sync.Mutex
	locks map[numerator.DocumentType]*sync.Mutex
}

// Ensure compile-time interface compliance.
var _ numerator.CounterStore = (*CounterStore)(nil)

// Open dials etcd and returns a store owning the client.
func Open(cfg Config) (*CounterStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd: at least one endpoint is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	s := NewCounterStore(client, cfg.Prefix)
	s.client = client
	return s, nil
}

// NewCounterStore wraps an existing KV. The caller keeps ownership of kv.
func NewCounterStore(kv clientv3.KV, prefix string) *CounterStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CounterStore{
		kv:     kv,
		prefix: strings.TrimSuffix(prefix, _keySeparator),
		locks:  make(map[numerator.DocumentType]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding writes to t's key.
func (s *CounterStore) lockFor(t numerator.DocumentType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[t]
	if !ok {
		l = &sync.Mutex{}
		s.locks[t] = l
	}
	return l
}

func (s *CounterStore) key(t numerator.DocumentType) string {
	return s.prefix + _keySeparator + string(t)
}

// IncrementAndGet implements numerator.CounterStore.
func (s *CounterStore) IncrementAndGet(ctx context.Context, t numerator.DocumentType, delta int64) (int64, error) {
	return s.swap(ctx, "increment", t, func(cur int64) (int64, error) {
		return numerator.AddChecked(cur, delta)
	})
}

// Raise implements numerator.CounterStore.
func (s *CounterStore) Raise(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error) {
	return s.swap(ctx, "raise", t, func(cur int64) (int64, error) {
		return max(cur, floor), nil
	})
}

// swap reads the key once and commits next(current) if nobody wrote it in between.
func (s *CounterStore) swap(ctx context.Context, op string, t numerator.DocumentType, next func(int64) (int64, error)) (int64, error) {
	l := s.lockFor(t)
	l.Lock()
	defer l.Unlock()

	key := s.key(t)

	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return 0, classify(op, t, err)
	}

	var (
		cur int64
		cmp clientv3.Cmp
	)
	if len(resp.Kvs) == 0 {
		cmp = clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
	} else {
		kv := resp.Kvs[0]
		cur, err = parseValue(kv.Value)
		if err != nil {
			return 0, fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrStoreUnavailable, err)
		}
		cmp = clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)
	}

	val, err := next(cur)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrStoreUnavailable, err)
	}
	if val == cur && len(resp.Kvs) > 0 {
		// Raise below the current value; nothing to write.
		return cur, nil
	}

	txnResp, err := s.kv.Txn(ctx).
		If(cmp).
		Then(clientv3.OpPut(key, strconv.FormatInt(val, 10))).
		Commit()
	if err != nil {
		return 0, classify(op, t, err)
	}
	if !txnResp.Succeeded {
		return 0, fmt.Errorf("%s %s: %w: key %s modified concurrently", op, t, numerator.ErrConflict, key)
	}
	return val, nil
}

// Current implements numerator.CounterStore.
func (s *CounterStore) Current(ctx context.Context, t numerator.DocumentType) (int64, error) {
	resp, err := s.kv.Get(ctx, s.key(t))
	if err != nil {
		return 0, classify("current", t, err)
	}
	if len(resp.Kvs) == 0 {
		return 0, nil
	}
	cur, err := parseValue(resp.Kvs[0].Value)
	if err != nil {
		return 0, fmt.Errorf("current %s: %w: %w", t, numerator.ErrStoreUnavailable, err)
	}
	return cur, nil
}

// List implements numerator.CounterStore.
// etcd keeps no wall-clock timestamps, so UpdatedAt is left zero.
func (s *CounterStore) List(ctx context.Context) ([]numerator.SequenceCounter, error) {
	resp, err := s.kv.Get(ctx, s.prefix+_keySeparator, clientv3.WithPrefix())
	if err != nil {
		return nil, classify("list", "", err)
	}

	items := make([]numerator.SequenceCounter, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		cur, err := parseValue(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("list: %w: %w", numerator.ErrStoreUnavailable, err)
		}
		name := strings.TrimPrefix(string(kv.Key), s.prefix+_keySeparator)
		items = append(items, numerator.SequenceCounter{
			DocumentType: numerator.DocumentType(name),
			LastIssued:   cur,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DocumentType < items[j].DocumentType })
	return items, nil
}

// Ping implements numerator.CounterStore.
func (s *CounterStore) Ping(ctx context.Context) error {
	if _, err := s.kv.Get(ctx, s.prefix, clientv3.WithCountOnly()); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// Close implements numerator.CounterStore.
func (s *CounterStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func parseValue(v []byte) (int64, error) {
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter value %q: %w", v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative counter value %d", n)
	}
	return n, nil
}

func classify(op string, t numerator.DocumentType, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrStoreUnavailable, err)
}
