package workorders

import (
	"context"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/xjson"
)

// SweepUnqueued re-enqueues attempts that were committed while the
// queue handoff failed. The queue deduplicates by attempt id, so the
// sweep is idempotent: re-enqueueing an attempt that made it into the
// queue after all is a no-op, and the marker is cleared either way.
// Returns how many attempts were handed off.
func (s *Service) SweepUnqueued(ctx context.Context) (int, error) {
	markers, err := s.store.ListByPrefix(domain.UnqueuedPrefix)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, marker := range markers {
		var payload domain.AttemptPayload
		if err := xjson.Unmarshal(marker.Value, &payload); err != nil {
			s.logger.Error("corrupt pending-enqueue marker", "key", marker.Key, "error", err)
			continue
		}

		if err := s.queue.Enqueue(ctx, payload); err != nil {
			s.logger.Warn("sweep enqueue failed, will retry next pass",
				"attempt_id", payload.AttemptID, "error", err)
			continue
		}

		s.confirmEnqueued(payload.AttemptID)
		swept++
	}

	if swept > 0 {
		s.logger.Info("reconciled unqueued attempts", "count", swept)
	}
	return swept, nil
}
