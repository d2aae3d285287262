package domain

import (
	"time"

	"github.com/eleven-am/foreman/internal/xjson"
)

// Workflow is a versioned DAG of jobs connected by conditional edges.
// The embedded Jobs/Triggers/Edges are the snapshot an Attempt executes
// against; once an Attempt is enqueued its job set never changes.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProjectID string    `json:"project_id"`
	Jobs      []Job     `json:"jobs"`
	Triggers  []Trigger `json:"triggers"`
	Edges     []Edge    `json:"edges"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is a single workflow step: a body of code plus the adaptor that
// executes it.
type Job struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Adaptor    string `json:"adaptor"`
}

type TriggerType string

const (
	TriggerWebhook TriggerType = "webhook"
	TriggerCron    TriggerType = "cron"
	TriggerManual  TriggerType = "manual"
)

// Trigger is a DAG root. Triggers have no inbound edges and share the
// node-id namespace with jobs.
type Trigger struct {
	ID             string      `json:"id"`
	WorkflowID     string      `json:"workflow_id"`
	Type           TriggerType `json:"type"`
	CronExpression string      `json:"cron_expression,omitempty"`
	Enabled        bool        `json:"enabled"`
}

type EdgeCondition string

const (
	EdgeAlways    EdgeCondition = "always"
	EdgeOnSuccess EdgeCondition = "on_success"
	EdgeOnFailure EdgeCondition = "on_failure"
	EdgeCustom    EdgeCondition = "custom"
)

// Edge is a directed dependency from a trigger or job to a job. The
// condition decides whether the target runs after the source finishes;
// evaluation of custom expressions belongs to the external executor.
type Edge struct {
	ID              string        `json:"id"`
	WorkflowID      string        `json:"workflow_id"`
	SourceTriggerID string        `json:"source_trigger_id,omitempty"`
	SourceJobID     string        `json:"source_job_id,omitempty"`
	TargetJobID     string        `json:"target_job_id"`
	Condition       EdgeCondition `json:"condition"`
	Expression      string        `json:"expression,omitempty"`
	Enabled         bool          `json:"enabled"`
}

// SourceID returns the edge's source node id regardless of whether the
// source is a trigger or a job.
func (e Edge) SourceID() string {
	if e.SourceTriggerID != "" {
		return e.SourceTriggerID
	}
	return e.SourceJobID
}

type DataclipKind string

const (
	DataclipHTTPRequest DataclipKind = "http_request"
	DataclipGlobal      DataclipKind = "global"
	DataclipRunResult   DataclipKind = "run_result"
	DataclipSavedInput  DataclipKind = "saved_input"
)

// Dataclip is an opaque JSON payload. It is created once and referenced,
// never copied, by every run that consumes it.
type Dataclip struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	Kind       DataclipKind     `json:"kind"`
	Body       xjson.RawMessage `json:"body"`
	InsertedAt time.Time        `json:"inserted_at"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
