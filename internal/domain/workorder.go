package domain

import (
	"time"
)

// State is the shared lifecycle vocabulary for runs, attempts and the
// aggregated work-order state.
type State string

const (
	StatePending State = "pending"
	StateClaimed State = "claimed"
	StateStarted State = "started"

	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateCrashed   State = "crashed"
	StateKilled    State = "killed"
	StateException State = "exception"
	StateLost      State = "lost"
)

// Terminal reports whether the state is final. Terminal runs are
// immutable.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCrashed, StateKilled, StateException, StateLost:
		return true
	}
	return false
}

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateClaimed, StateStarted:
		return true
	}
	return s.Terminal()
}

// Run is one execution of one job within one attempt.
type Run struct {
	ID               string     `json:"id"`
	AttemptID        string     `json:"attempt_id"`
	JobID            string     `json:"job_id"`
	InputDataclipID  string     `json:"input_dataclip_id"`
	OutputDataclipID string     `json:"output_dataclip_id,omitempty"`
	State            State      `json:"state"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	InsertedAt       time.Time  `json:"inserted_at"`
}

// Attempt is one execution lineage of a work order: the original
// enqueue or a retry. Carried runs are prior-attempt runs whose outputs
// are reused instead of re-executed.
type Attempt struct {
	ID             string     `json:"id"`
	WorkOrderID    string     `json:"work_order_id"`
	StartingJobID  string     `json:"starting_job_id,omitempty"`
	DataclipID     string     `json:"dataclip_id"`
	CreatedByID    string     `json:"created_by_id,omitempty"`
	PriorAttemptID string     `json:"prior_attempt_id,omitempty"`
	RunIDs         []string   `json:"run_ids"`
	CarriedRunIDs  []string   `json:"carried_run_ids,omitempty"`
	State          State      `json:"state"`
	InsertedAt     time.Time  `json:"inserted_at"`
	EnqueuedAt     *time.Time `json:"enqueued_at,omitempty"`
}

// AllRunIDs returns owned plus carried run ids; together they are the
// attempt's full run set for aggregation.
func (a *Attempt) AllRunIDs() []string {
	ids := make([]string, 0, len(a.RunIDs)+len(a.CarriedRunIDs))
	ids = append(ids, a.RunIDs...)
	ids = append(ids, a.CarriedRunIDs...)
	return ids
}

// WorkOrder is one triggering event's unit of trackable work. Its state
// is derived from the latest attempt's runs, never set directly.
type WorkOrder struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	ProjectID  string    `json:"project_id"`
	TriggerID  string    `json:"trigger_id,omitempty"`
	DataclipID string    `json:"dataclip_id"`
	AttemptIDs []string  `json:"attempt_ids"`
	State      State     `json:"state"`
	InsertedAt time.Time `json:"inserted_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LatestAttemptID returns the active attempt; earlier attempts are
// immutable history.
func (w *WorkOrder) LatestAttemptID() string {
	if len(w.AttemptIDs) == 0 {
		return ""
	}
	return w.AttemptIDs[len(w.AttemptIDs)-1]
}
