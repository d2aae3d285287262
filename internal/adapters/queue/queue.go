// Package queue is a storage-backed execution queue for attempts.
// Items survive restarts because they live in the same durable store
// as the records they refer to; enqueue is idempotent per attempt id.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

type Queue struct {
	name    string
	storage ports.StoragePort
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewQueue(name string, storage ports.StoragePort, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		name:    name,
		storage: storage,
		logger:  logger.With("component", "queue", "queue", name),
	}
}

func (q *Queue) Enqueue(ctx context.Context, payload domain.AttemptPayload) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return domain.ErrQueueUnavailable
	}
	if payload.AttemptID == "" {
		return domain.NewValidationError("attempt_id", "cannot be empty")
	}

	return q.storage.RunInTransaction(func(tx ports.Transaction) error {
		exists, err := tx.Exists(itemKey(q.name, payload.AttemptID))
		if err != nil {
			return err
		}
		if exists {
			q.logger.Debug("attempt already queued", "attempt_id", payload.AttemptID)
			return nil
		}

		sequence, seqVersion, err := nextSequence(tx, q.name)
		if err != nil {
			return err
		}

		item := domain.NewQueueItem(payload, sequence)
		itemBytes, err := item.ToBytes()
		if err != nil {
			return err
		}

		if err := tx.Put(pendingKey(q.name, sequence), itemBytes, 0); err != nil {
			return err
		}
		if err := tx.Put(itemKey(q.name, payload.AttemptID), []byte(pendingKey(q.name, sequence)), 0); err != nil {
			return err
		}

		seqBytes, err := xjson.Marshal(sequence)
		if err != nil {
			return err
		}
		return tx.Put(sequenceKey(q.name), seqBytes, seqVersion)
	})
}

func (q *Queue) Claim(ctx context.Context) (*domain.AttemptPayload, string, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, "", false, domain.ErrQueueUnavailable
	}

	var payload *domain.AttemptPayload
	claimID := uuid.New().String()
	found := false

	err := q.storage.RunInTransaction(func(tx ports.Transaction) error {
		items, err := tx.ListByPrefix(pendingPrefix(q.name))
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		head := items[0]
		item, err := domain.QueueItemFromBytes(head.Value)
		if err != nil {
			return err
		}

		if err := tx.Delete(head.Key); err != nil {
			return err
		}
		if err := tx.Put(claimedKey(q.name, claimID), head.Value, 0); err != nil {
			return err
		}

		payload = &item.Payload
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, "", false, err
	}

	q.logger.Debug("attempt claimed", "attempt_id", payload.AttemptID, "claim_id", claimID)
	return payload, claimID, true, nil
}

func (q *Queue) Complete(ctx context.Context, claimID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return domain.ErrQueueUnavailable
	}

	return q.storage.RunInTransaction(func(tx ports.Transaction) error {
		value, _, exists, err := tx.Get(claimedKey(q.name, claimID))
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFoundError("claim", claimID)
		}

		item, err := domain.QueueItemFromBytes(value)
		if err != nil {
			return err
		}

		if err := tx.Delete(claimedKey(q.name, claimID)); err != nil {
			return err
		}
		return tx.Delete(itemKey(q.name, item.Payload.AttemptID))
	})
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, domain.ErrQueueUnavailable
	}
	return q.storage.CountPrefix(pendingPrefix(q.name))
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func nextSequence(tx ports.Transaction, name string) (int64, int64, error) {
	value, version, exists, err := tx.Get(sequenceKey(name))
	if err != nil {
		return 0, 0, err
	}

	var current int64
	if exists {
		if err := xjson.Unmarshal(value, &current); err != nil {
			return 0, 0, err
		}
	}
	return current + 1, version, nil
}
