package workorders

import (
	"context"

	"github.com/google/uuid"

	"github.com/eleven-am/foreman/internal/core/graph"
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

type RetryOptions struct {
	CreatedByID string
}

// Retry resumes a work order from a specific run of an existing
// attempt. The workflow's edges are rebuilt into a dependency graph,
// pruned to the ancestor closure of the target run's job, and the
// attempt's runs on that closure (minus the target job itself) are
// carried over unmodified: their outputs are already-computed upstream
// state and re-executing them would re-apply side effects.
// The target job gets a fresh run fed by the prior run's input clip.
func (s *Service) Retry(ctx context.Context, attemptID, runID string, opts RetryOptions) (*domain.Attempt, error) {
	var prior *domain.Attempt
	var target *domain.Run
	err := s.store.RunInTransaction(func(tx ports.Transaction) error {
		var err error
		if prior, _, err = getAttempt(tx, attemptID); err != nil {
			return err
		}
		target, _, err = getRun(tx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if target.AttemptID != prior.ID {
		return nil, domain.NewValidationError("run", "does not belong to the given attempt")
	}

	var wo *domain.WorkOrder
	err = s.store.RunInTransaction(func(tx ports.Transaction) error {
		var err error
		wo, _, err = getWorkOrder(tx, prior.WorkOrderID)
		return err
	})
	if err != nil {
		return nil, asValidation("work_order", err)
	}

	wf, err := s.workflows.GetWorkflow(ctx, wo.WorkflowID)
	if err != nil {
		return nil, asValidation("workflow", err)
	}

	if _, err := s.dataclips.Get(ctx, target.InputDataclipID); err != nil {
		return nil, asValidation("dataclip", err)
	}

	if opts.CreatedByID != "" {
		if _, err := s.identity.GetUser(ctx, opts.CreatedByID); err != nil {
			return nil, asValidation("created_by", err)
		}
	}

	carried, err := s.planCarriedRuns(prior, target, wf.Edges)
	if err != nil {
		return nil, err
	}

	now := s.now()
	restart := domain.Run{
		ID:              uuid.New().String(),
		JobID:           target.JobID,
		InputDataclipID: target.InputDataclipID,
		State:           domain.StatePending,
		InsertedAt:      now,
	}

	next := &domain.Attempt{
		ID:             uuid.New().String(),
		WorkOrderID:    wo.ID,
		StartingJobID:  target.JobID,
		DataclipID:     target.InputDataclipID,
		CreatedByID:    opts.CreatedByID,
		PriorAttemptID: prior.ID,
		RunIDs:         []string{restart.ID},
		CarriedRunIDs:  carried,
		State:          domain.StatePending,
		InsertedAt:     now,
	}
	restart.AttemptID = next.ID

	payload := domain.AttemptPayload{
		AttemptID:     next.ID,
		WorkOrderID:   wo.ID,
		WorkflowID:    wo.WorkflowID,
		ProjectID:     wo.ProjectID,
		StartingJobID: next.StartingJobID,
		DataclipID:    next.DataclipID,
		CarriedRunIDs: carried,
		RunIDs:        next.RunIDs,
	}

	err = s.withRetries(func(tx ports.Transaction) error {
		current, version, err := getWorkOrder(tx, wo.ID)
		if err != nil {
			return err
		}

		if err := putRun(tx, &restart, 0); err != nil {
			return err
		}
		if err := putAttempt(tx, next, 0); err != nil {
			return err
		}

		current.AttemptIDs = append(current.AttemptIDs, next.ID)
		current.State = domain.StatePending
		current.UpdatedAt = now
		if err := putWorkOrder(tx, current, version); err != nil {
			return err
		}
		wo = current

		return putUnqueuedMarker(tx, payload)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attempt retried",
		"work_order_id", wo.ID,
		"prior_attempt_id", prior.ID,
		"attempt_id", next.ID,
		"starting_job_id", next.StartingJobID,
		"carried_runs", len(carried))

	s.handoff(ctx, wo.ProjectID, payload)
	s.publish(wo.ProjectID, domain.NewWorkOrderUpdatedEvent(wo, next.ID))
	return next, nil
}

// RetryMany plans retries for several (attempt, run) pairs; it stops
// at the first failure and reports how many attempts it created.
func (s *Service) RetryMany(ctx context.Context, pairs [][2]string, opts RetryOptions) ([]*domain.Attempt, error) {
	attempts := make([]*domain.Attempt, 0, len(pairs))
	for _, pair := range pairs {
		attempt, err := s.Retry(ctx, pair[0], pair[1], opts)
		if err != nil {
			return attempts, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

// planCarriedRuns computes which of the prior attempt's runs survive
// into the new one: runs on jobs in the ancestor closure of the target
// job, excluding the target job itself.
func (s *Service) planCarriedRuns(prior *domain.Attempt, target *domain.Run, edges []domain.Edge) ([]string, error) {
	g, err := graph.FromEdges(edges)
	if err != nil {
		return nil, err
	}
	if err := g.AddNode(target.JobID); err != nil {
		return nil, err
	}

	pruned, err := g.Prune(target.JobID)
	if err != nil {
		return nil, err
	}
	keep := pruned.NodeSet()

	var runs []domain.Run
	err = s.store.RunInTransaction(func(tx ports.Transaction) error {
		runs, err = attemptRuns(tx, prior)
		return err
	})
	if err != nil {
		return nil, err
	}

	var carried []string
	for _, run := range runs {
		if run.JobID == target.JobID {
			continue
		}
		if _, ok := keep[run.JobID]; ok {
			carried = append(carried, run.ID)
		}
	}
	return carried, nil
}
