package workorders

import (
	"context"

	"github.com/google/uuid"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// TriggerParams describes a webhook or cron firing. Either DataclipID
// (an existing clip) or DataclipBody (inserted as a new clip) must be
// set.
type TriggerParams struct {
	TriggerID    string
	DataclipID   string
	DataclipBody xjson.RawMessage
}

// JobParams describes a manual run started from a specific step by a
// user.
type JobParams struct {
	JobID        string
	CreatedByID  string
	DataclipID   string
	DataclipBody xjson.RawMessage
}

// CreateForTrigger builds the work order, its first attempt and one
// root run per enabled trigger edge, persists them atomically, then
// enqueues the attempt and notifies the project's subscribers. Nothing
// is persisted when validation fails.
func (s *Service) CreateForTrigger(ctx context.Context, params TriggerParams) (*domain.WorkOrder, error) {
	trigger, err := s.workflows.GetTrigger(ctx, params.TriggerID)
	if err != nil {
		return nil, asValidation("trigger", err)
	}

	wf, err := s.workflows.GetWorkflow(ctx, trigger.WorkflowID)
	if err != nil {
		return nil, asValidation("workflow", err)
	}

	clip, err := s.resolveDataclip(ctx, params.DataclipID, params.DataclipBody, wf.ProjectID, domain.DataclipHTTPRequest)
	if err != nil {
		return nil, err
	}

	var rootJobs []string
	for _, edge := range wf.Edges {
		if edge.Enabled && edge.SourceTriggerID == trigger.ID {
			rootJobs = append(rootJobs, edge.TargetJobID)
		}
	}
	if len(rootJobs) == 0 {
		return nil, domain.NewValidationError("trigger", "has no enabled outgoing edges")
	}

	wo := &domain.WorkOrder{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		ProjectID:  wf.ProjectID,
		TriggerID:  trigger.ID,
		DataclipID: clip.ID,
	}

	payload, err := s.persistNewWorkOrder(wo, "", "", clip.ID, rootJobs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order created",
		"work_order_id", wo.ID,
		"workflow_id", wf.ID,
		"trigger_id", trigger.ID,
		"root_runs", len(rootJobs))

	s.handoff(ctx, wo.ProjectID, payload)
	s.publish(wo.ProjectID, domain.NewWorkOrderCreatedEvent(wo, payload.AttemptID))
	return wo, nil
}

// CreateForJob builds a work order for a manual run from one step. The
// creating user must resolve; the work order carries no trigger.
func (s *Service) CreateForJob(ctx context.Context, params JobParams) (*domain.WorkOrder, error) {
	job, err := s.workflows.GetJob(ctx, params.JobID)
	if err != nil {
		return nil, asValidation("job", err)
	}

	wf, err := s.workflows.GetWorkflow(ctx, job.WorkflowID)
	if err != nil {
		return nil, asValidation("workflow", err)
	}

	if params.CreatedByID == "" {
		return nil, domain.NewValidationError("created_by", "is required for job-initiated work orders")
	}
	if _, err := s.identity.GetUser(ctx, params.CreatedByID); err != nil {
		return nil, asValidation("created_by", err)
	}

	clip, err := s.resolveDataclip(ctx, params.DataclipID, params.DataclipBody, wf.ProjectID, domain.DataclipSavedInput)
	if err != nil {
		return nil, err
	}

	wo := &domain.WorkOrder{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		ProjectID:  wf.ProjectID,
		DataclipID: clip.ID,
	}

	payload, err := s.persistNewWorkOrder(wo, job.ID, params.CreatedByID, clip.ID, []string{job.ID})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order created",
		"work_order_id", wo.ID,
		"workflow_id", wf.ID,
		"job_id", job.ID,
		"created_by", params.CreatedByID)

	s.handoff(ctx, wo.ProjectID, payload)
	s.publish(wo.ProjectID, domain.NewWorkOrderCreatedEvent(wo, payload.AttemptID))
	return wo, nil
}

func (s *Service) resolveDataclip(ctx context.Context, id string, body xjson.RawMessage, projectID string, kind domain.DataclipKind) (*domain.Dataclip, error) {
	if id != "" {
		clip, err := s.dataclips.Get(ctx, id)
		if err != nil {
			return nil, asValidation("dataclip", err)
		}
		return clip, nil
	}
	if len(body) == 0 {
		return nil, domain.NewValidationError("dataclip", "either an existing dataclip id or a body is required")
	}
	return s.dataclips.Insert(ctx, body, projectID, kind)
}

// persistNewWorkOrder writes the work order, its first attempt, the
// root runs and the pending-enqueue marker in one transaction.
func (s *Service) persistNewWorkOrder(wo *domain.WorkOrder, startingJobID, createdByID, dataclipID string, rootJobs []string) (domain.AttemptPayload, error) {
	now := s.now()

	attempt := &domain.Attempt{
		ID:            uuid.New().String(),
		WorkOrderID:   wo.ID,
		StartingJobID: startingJobID,
		DataclipID:    dataclipID,
		CreatedByID:   createdByID,
		State:         domain.StatePending,
		InsertedAt:    now,
	}

	runs := make([]domain.Run, 0, len(rootJobs))
	for _, jobID := range rootJobs {
		run := domain.Run{
			ID:              uuid.New().String(),
			AttemptID:       attempt.ID,
			JobID:           jobID,
			InputDataclipID: dataclipID,
			State:           domain.StatePending,
			InsertedAt:      now,
		}
		runs = append(runs, run)
		attempt.RunIDs = append(attempt.RunIDs, run.ID)
	}

	wo.AttemptIDs = []string{attempt.ID}
	wo.State = domain.StatePending
	wo.InsertedAt = now
	wo.UpdatedAt = now

	payload := domain.AttemptPayload{
		AttemptID:     attempt.ID,
		WorkOrderID:   wo.ID,
		WorkflowID:    wo.WorkflowID,
		ProjectID:     wo.ProjectID,
		StartingJobID: startingJobID,
		DataclipID:    dataclipID,
		RunIDs:        attempt.RunIDs,
	}

	err := s.store.RunInTransaction(func(tx ports.Transaction) error {
		for i := range runs {
			if err := putRun(tx, &runs[i], 0); err != nil {
				return err
			}
		}
		if err := putAttempt(tx, attempt, 0); err != nil {
			return err
		}
		if err := putWorkOrder(tx, wo, 0); err != nil {
			return err
		}
		return putUnqueuedMarker(tx, payload)
	})
	if err != nil {
		return domain.AttemptPayload{}, err
	}
	return payload, nil
}

// asValidation converts a failed association lookup into a validation
// error naming the field; other failures pass through.
func asValidation(field string, err error) error {
	if domain.IsNotFound(err) {
		return domain.NewValidationError(field, "does not resolve to an existing record")
	}
	return err
}
