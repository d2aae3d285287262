package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Put("k1", []byte("v1"), 0))

	value, version, exists, err := s.Get("k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("v1"), value)
	assert.Equal(t, int64(1), version)
}

func TestStore_PutVersionCheck(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k1", []byte("v1"), 0))

	t.Run("create on existing key fails", func(t *testing.T) {
		err := s.Put("k1", []byte("v2"), 0)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("stale version fails", func(t *testing.T) {
		require.NoError(t, s.Put("k1", []byte("v2"), 1))
		err := s.Put("k1", []byte("v3"), 1)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("current version succeeds and bumps", func(t *testing.T) {
		require.NoError(t, s.Put("k1", []byte("v3"), 2))
		_, version, _, err := s.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), version)
	})
}

func TestStore_DeleteAndExists(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k1", []byte("v1"), 0))

	exists, err := s.Exists("k1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete("k1"))

	exists, err = s.Exists("k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_ListByPrefixSorted(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("run:b", []byte("2"), 0))
	require.NoError(t, s.Put("run:a", []byte("1"), 0))
	require.NoError(t, s.Put("attempt:x", []byte("3"), 0))

	items, err := s.ListByPrefix("run:")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "run:a", items[0].Key)
	assert.Equal(t, "run:b", items[1].Key)
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("keep", []byte("old"), 0))

	boom := errors.New("boom")
	err := s.RunInTransaction(func(tx ports.Transaction) error {
		if err := tx.Put("keep", []byte("new"), 1); err != nil {
			return err
		}
		if err := tx.Put("extra", []byte("x"), 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	value, _, _, err := s.Get("keep")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), value)

	exists, err := s.Exists("extra")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_TransactionSeesOwnWrites(t *testing.T) {
	s := NewStore()

	err := s.RunInTransaction(func(tx ports.Transaction) error {
		if err := tx.Put("k1", []byte("v1"), 0); err != nil {
			return err
		}

		value, _, exists, err := tx.Get("k1")
		require.NoError(t, err)
		require.True(t, exists)
		assert.Equal(t, []byte("v1"), value)

		if err := tx.Delete("k1"); err != nil {
			return err
		}
		exists, err = tx.Exists("k1")
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("counter", []byte("0"), 0))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTransaction(func(tx ports.Transaction) error {
				value, version, _, err := tx.Get("counter")
				if err != nil {
					return err
				}
				next := append([]byte(nil), value...)
				next = append(next, 'x')
				return tx.Put("counter", next, version)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, version, _, err := s.Get("counter")
	require.NoError(t, err)
	assert.Len(t, value, 1+workers)
	assert.Equal(t, int64(1+workers), version)
}

func TestStore_ClosedRejectsOperations(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Close())

	_, _, _, err := s.Get("k1")
	assert.ErrorIs(t, err, domain.ErrClosed)

	err = s.Put("k1", []byte("v"), 0)
	assert.ErrorIs(t, err, domain.ErrClosed)
}
