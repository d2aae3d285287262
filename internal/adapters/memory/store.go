package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

type entry struct {
	value   []byte
	version int64
}

// Store is an in-memory ports.StoragePort. A single mutex serializes
// transactions, so the compare-and-swap contract holds trivially; it
// exists for tests and for embedding without a data directory.
type Store struct {
	mu     sync.Mutex
	data   map[string]entry
	closed bool
}

func NewStore() *Store {
	return &Store{data: make(map[string]entry)}
}

func (s *Store) Get(key string) ([]byte, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, 0, false, domain.ErrClosed
	}
	e, ok := s.data[key]
	if !ok {
		return nil, 0, false, nil
	}
	return append([]byte(nil), e.value...), e.version, true, nil
}

func (s *Store) Put(key string, value []byte, version int64) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		return tx.Put(key, value, version)
	})
}

func (s *Store) Delete(key string) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		return tx.Delete(key)
	})
}

func (s *Store) Exists(key string) (bool, error) {
	_, _, exists, err := s.Get(key)
	return exists, err
}

func (s *Store) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrClosed
	}
	return s.listLocked(prefix), nil
}

func (s *Store) GetNext(prefix string) (string, []byte, bool, error) {
	items, err := s.ListByPrefix(prefix)
	if err != nil {
		return "", nil, false, err
	}
	if len(items) == 0 {
		return "", nil, false, nil
	}
	return items[0].Key, items[0].Value, true, nil
}

func (s *Store) CountPrefix(prefix string) (int, error) {
	items, err := s.ListByPrefix(prefix)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) RunInTransaction(fn func(tx ports.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrClosed
	}

	tx := &memTx{
		store:   s,
		pending: make(map[string]*entry),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for key, e := range tx.pending {
		if e == nil {
			delete(s.data, key)
			continue
		}
		s.data[key] = *e
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) listLocked(prefix string) []ports.KeyValueVersion {
	var result []ports.KeyValueVersion
	for key, e := range s.data {
		if strings.HasPrefix(key, prefix) {
			result = append(result, ports.KeyValueVersion{
				Key:     key,
				Value:   append([]byte(nil), e.value...),
				Version: e.version,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// memTx stages writes and applies them only when the callback returns
// nil, giving rollback on error. A nil pending entry marks a delete.
type memTx struct {
	store   *Store
	pending map[string]*entry
}

func (t *memTx) Get(key string) ([]byte, int64, bool, error) {
	if e, ok := t.pending[key]; ok {
		if e == nil {
			return nil, 0, false, nil
		}
		return append([]byte(nil), e.value...), e.version, true, nil
	}
	e, ok := t.store.data[key]
	if !ok {
		return nil, 0, false, nil
	}
	return append([]byte(nil), e.value...), e.version, true, nil
}

func (t *memTx) Put(key string, value []byte, version int64) error {
	_, current, exists, err := t.Get(key)
	if err != nil {
		return err
	}
	if exists && current != version {
		return domain.NewVersionMismatchError(key, version, current)
	}
	if !exists && version != 0 {
		return domain.NewVersionMismatchError(key, version, 0)
	}
	t.pending[key] = &entry{value: append([]byte(nil), value...), version: current + 1}
	return nil
}

func (t *memTx) Delete(key string) error {
	t.pending[key] = nil
	return nil
}

func (t *memTx) Exists(key string) (bool, error) {
	_, _, exists, err := t.Get(key)
	return exists, err
}

func (t *memTx) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	base := t.store.listLocked(prefix)
	merged := make(map[string]ports.KeyValueVersion, len(base))
	for _, kv := range base {
		merged[kv.Key] = kv
	}
	for key, e := range t.pending {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e == nil {
			delete(merged, key)
			continue
		}
		merged[key] = ports.KeyValueVersion{Key: key, Value: append([]byte(nil), e.value...), Version: e.version}
	}

	result := make([]ports.KeyValueVersion, 0, len(merged))
	for _, kv := range merged {
		result = append(result, kv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}
