package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// Badger implements ports.StoragePort on a local badger database.
// Versions live in a sidecar key ("v:" + key) written in the same
// transaction as the value, and badger's SSI turns write races into
// conflict errors the callers retry.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadger(db *badger.DB, logger *slog.Logger) *Badger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Badger{
		db:     db,
		logger: logger.With("component", "storage"),
	}
}

// Open opens the badger database at dataDir and wraps it.
func Open(dataDir string, syncWrites bool, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dataDir).
		WithSyncWrites(syncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dataDir, err)
	}

	return NewBadger(db, logger), nil
}

func versionKey(key string) []byte {
	return []byte("v:" + key)
}

func (s *Badger) Get(key string) (value []byte, version int64, exists bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		value, version, exists, err = txnGet(txn, key)
		return err
	})
	return value, version, exists, err
}

func (s *Badger) Put(key string, value []byte, version int64) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		return tx.Put(key, value, version)
	})
}

func (s *Badger) Delete(key string) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		return tx.Delete(key)
	})
}

func (s *Badger) Exists(key string) (bool, error) {
	_, _, exists, err := s.Get(key)
	return exists, err
}

func (s *Badger) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	var result []ports.KeyValueVersion
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		result, err = txnList(txn, prefix)
		return err
	})
	return result, err
}

func (s *Badger) GetNext(prefix string) (key string, value []byte, exists bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}

		item := it.Item()
		key = string(item.KeyCopy(nil))
		value, err = item.ValueCopy(nil)
		exists = true
		return err
	})
	return key, value, exists, err
}

func (s *Badger) CountPrefix(prefix string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *Badger) RunInTransaction(fn func(tx ports.Transaction) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrConflict
	}
	return err
}

func (s *Badger) Close() error {
	return s.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(key string) ([]byte, int64, bool, error) {
	return txnGet(t.txn, key)
}

func (t *badgerTx) Put(key string, value []byte, version int64) error {
	_, current, exists, err := txnGet(t.txn, key)
	if err != nil {
		return err
	}
	if exists && current != version {
		return domain.NewVersionMismatchError(key, version, current)
	}
	if !exists && version != 0 {
		return domain.NewVersionMismatchError(key, version, 0)
	}

	if err := t.txn.Set([]byte(key), value); err != nil {
		return err
	}

	next, err := xjson.Marshal(current + 1)
	if err != nil {
		return err
	}
	return t.txn.Set(versionKey(key), next)
}

func (t *badgerTx) Delete(key string) error {
	if err := t.txn.Delete([]byte(key)); err != nil {
		return err
	}
	return t.txn.Delete(versionKey(key))
}

func (t *badgerTx) Exists(key string) (bool, error) {
	_, _, exists, err := txnGet(t.txn, key)
	return exists, err
}

func (t *badgerTx) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	return txnList(t.txn, prefix)
}

func txnGet(txn *badger.Txn, key string) (value []byte, version int64, exists bool, err error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}

	value, err = item.ValueCopy(nil)
	if err != nil {
		return nil, 0, false, err
	}

	if vItem, vErr := txn.Get(versionKey(key)); vErr == nil {
		if vBytes, cErr := vItem.ValueCopy(nil); cErr == nil {
			xjson.Unmarshal(vBytes, &version)
		}
	}

	return value, version, true, nil
}

func txnList(txn *badger.Txn, prefix string) ([]ports.KeyValueVersion, error) {
	var result []ports.KeyValueVersion

	it := txn.NewIterator(badger.IteratorOptions{
		Prefix:         []byte(prefix),
		PrefetchValues: true,
		PrefetchSize:   100,
	})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.KeyCopy(nil))
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}

		var version int64
		if vItem, vErr := txn.Get(versionKey(key)); vErr == nil {
			if vBytes, cErr := vItem.ValueCopy(nil); cErr == nil {
				xjson.Unmarshal(vBytes, &version)
			}
		}

		result = append(result, ports.KeyValueVersion{Key: key, Value: value, Version: version})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}
