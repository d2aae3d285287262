package workorders

import (
	"context"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// ReportRunState records a worker's progress report for one run and
// recomputes the owning work order's aggregate state in the same
// transaction. The read of all sibling run states and the write of the
// derived state are atomic, so two workers finalizing sibling runs
// serialize: the loser of the version race transparently retries and
// recomputes from the winner's committed state.
func (s *Service) ReportRunState(ctx context.Context, runID string, state domain.State, output xjson.RawMessage) error {
	if !state.Valid() || state == domain.StatePending {
		return domain.NewValidationError("state", "must be a claimed, started or terminal run state")
	}
	if len(output) > 0 && !state.Terminal() {
		return domain.NewValidationError("output", "only terminal reports may carry an output dataclip")
	}

	// The output clip is written up front so the retry loop below never
	// inserts it twice. Clips are immutable and cheap to orphan if the
	// report itself fails validation later.
	var outputClipID string
	if len(output) > 0 {
		projectID, err := s.runProjectID(runID)
		if err != nil {
			return err
		}
		clip, err := s.dataclips.Insert(ctx, output, projectID, domain.DataclipRunResult)
		if err != nil {
			return err
		}
		outputClipID = clip.ID
	}

	var updated *domain.WorkOrder
	var attemptID string
	err := s.withRetries(func(tx ports.Transaction) error {
		updated = nil

		run, runVersion, err := getRun(tx, runID)
		if err != nil {
			return err
		}
		if run.State.Terminal() {
			return domain.NewValidationError("run", "is already in a terminal state")
		}

		now := s.now()
		run.State = state
		if state == domain.StateStarted && run.StartedAt == nil {
			run.StartedAt = &now
		}
		if state.Terminal() {
			if run.StartedAt == nil {
				run.StartedAt = &now
			}
			run.FinishedAt = &now
			if outputClipID != "" {
				run.OutputDataclipID = outputClipID
			}
		}
		if err := putRun(tx, run, runVersion); err != nil {
			return err
		}

		attempt, attemptVersion, err := getAttempt(tx, run.AttemptID)
		if err != nil {
			return err
		}
		attemptID = attempt.ID

		runs, err := attemptRuns(tx, attempt)
		if err != nil {
			return err
		}
		aggregate := domain.AggregateRuns(runs)

		if attempt.State != aggregate {
			attempt.State = aggregate
			if err := putAttempt(tx, attempt, attemptVersion); err != nil {
				return err
			}
		}

		wo, woVersion, err := getWorkOrder(tx, attempt.WorkOrderID)
		if err != nil {
			return err
		}

		// Earlier attempts are immutable history; only the latest one
		// drives the work-order state.
		if wo.LatestAttemptID() != attempt.ID {
			return nil
		}
		if wo.State == aggregate {
			return nil
		}

		wo.State = aggregate
		wo.UpdatedAt = now
		if err := putWorkOrder(tx, wo, woVersion); err != nil {
			return err
		}
		updated = wo
		return nil
	})
	if err != nil {
		return err
	}

	if updated != nil {
		s.logger.Debug("work order state updated",
			"work_order_id", updated.ID,
			"state", updated.State,
			"run_id", runID)
		s.publish(updated.ProjectID, domain.NewWorkOrderUpdatedEvent(updated, attemptID))
	}
	return nil
}

func (s *Service) runProjectID(runID string) (string, error) {
	var projectID string
	err := s.store.RunInTransaction(func(tx ports.Transaction) error {
		run, _, err := getRun(tx, runID)
		if err != nil {
			return err
		}
		attempt, _, err := getAttempt(tx, run.AttemptID)
		if err != nil {
			return err
		}
		wo, _, err := getWorkOrder(tx, attempt.WorkOrderID)
		if err != nil {
			return err
		}
		projectID = wo.ProjectID
		return nil
	})
	return projectID, err
}
