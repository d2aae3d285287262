package ports

import (
	"context"

	"github.com/eleven-am/foreman/internal/domain"
)

// QueuePort is the execution-queue handoff. Enqueue must be idempotent
// per attempt id: re-enqueueing an already-queued attempt is a no-op,
// which makes the post-commit reconciliation sweep safe.
type QueuePort interface {
	Enqueue(ctx context.Context, payload domain.AttemptPayload) error

	// Claim hands the oldest pending attempt to a worker.
	Claim(ctx context.Context) (payload *domain.AttemptPayload, claimID string, exists bool, err error)
	Complete(ctx context.Context, claimID string) error

	Size(ctx context.Context) (int, error)
	Close() error
}
