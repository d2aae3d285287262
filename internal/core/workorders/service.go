// Package workorders is the orchestration core: it creates work orders
// for trigger firings and manual runs, plans retries by pruning the
// workflow DAG to the ancestor closure of the restart point, and
// derives work-order state from run reports under concurrent writers.
//
// The package owns no goroutines; it is a passive state manager driven
// by its callers against shared durable storage.
package workorders

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

type Deps struct {
	Store     ports.StoragePort
	Queue     ports.QueuePort
	Bus       ports.EventBus
	Workflows ports.WorkflowStore
	Identity  ports.IdentityStore
	Dataclips ports.DataclipStore
	Logger    *slog.Logger
	Config    domain.OrchestrationConfig
}

type Service struct {
	store     ports.StoragePort
	queue     ports.QueuePort
	bus       ports.EventBus
	workflows ports.WorkflowStore
	identity  ports.IdentityStore
	dataclips ports.DataclipStore
	logger    *slog.Logger
	retries   int
	now       func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, domain.NewValidationError("store", "cannot be nil")
	}
	if deps.Queue == nil {
		return nil, domain.NewValidationError("queue", "cannot be nil")
	}
	if deps.Bus == nil {
		return nil, domain.NewValidationError("bus", "cannot be nil")
	}
	if deps.Workflows == nil {
		return nil, domain.NewValidationError("workflows", "cannot be nil")
	}
	if deps.Identity == nil {
		return nil, domain.NewValidationError("identity", "cannot be nil")
	}
	if deps.Dataclips == nil {
		return nil, domain.NewValidationError("dataclips", "cannot be nil")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retries := deps.Config.AggregateRetries
	if retries <= 0 {
		retries = domain.DefaultOrchestrationConfig().AggregateRetries
	}

	return &Service{
		store:     deps.Store,
		queue:     deps.Queue,
		bus:       deps.Bus,
		workflows: deps.Workflows,
		identity:  deps.Identity,
		dataclips: deps.Dataclips,
		logger:    logger.With("component", "workorders"),
		retries:   retries,
		now:       time.Now,
	}, nil
}

// withRetries reruns fn while it loses storage version races, bounded.
// Conflicts are internal; callers never see them.
func (s *Service) withRetries(fn func(tx ports.Transaction) error) error {
	var err error
	for i := 0; i < s.retries; i++ {
		err = s.store.RunInTransaction(fn)
		if !domain.IsConflict(err) {
			return err
		}
		s.logger.Debug("transaction lost version race, retrying", "attempt", i+1)
	}
	return err
}

// handoff hands a freshly committed attempt to the execution queue and
// clears its pending-enqueue marker. A queue failure is not an error
// for the caller: the attempt is already durable and the sweep will
// re-enqueue it.
func (s *Service) handoff(ctx context.Context, projectID string, payload domain.AttemptPayload) {
	if err := s.queue.Enqueue(ctx, payload); err != nil {
		s.logger.Warn("enqueue failed, attempt left for reconciliation sweep",
			"attempt_id", payload.AttemptID,
			"work_order_id", payload.WorkOrderID,
			"error", err)
		return
	}

	s.confirmEnqueued(payload.AttemptID)

	if err := s.bus.Publish(projectID, domain.NewAttemptEnqueuedEvent(projectID, payload)); err != nil {
		s.logger.Warn("failed to publish attempt enqueued event",
			"attempt_id", payload.AttemptID, "error", err)
	}
}

func (s *Service) confirmEnqueued(attemptID string) {
	err := s.withRetries(func(tx ports.Transaction) error {
		if err := tx.Delete(domain.UnqueuedKey(attemptID)); err != nil {
			return err
		}

		attempt, version, err := getAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.EnqueuedAt != nil {
			return nil
		}
		now := s.now()
		attempt.EnqueuedAt = &now
		return putAttempt(tx, attempt, version)
	})
	if err != nil {
		s.logger.Warn("failed to confirm enqueue", "attempt_id", attemptID, "error", err)
	}
}

func (s *Service) publish(projectID string, event domain.Event) {
	if err := s.bus.Publish(projectID, event); err != nil {
		s.logger.Warn("failed to publish event",
			"project_id", projectID,
			"event_type", event.Type,
			"error", err)
	}
}
