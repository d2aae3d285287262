// Package foreman orchestrates multi-step, DAG-shaped workflows
// triggered by webhooks, cron schedules or manual invocation.
//
// Each triggering event produces a WorkOrder; each WorkOrder has one or
// more Attempts (one execution lineage, extended by retries); each
// Attempt consists of Runs, one per executed workflow step. Foreman
// provides:
//   - Work-order creation with atomic persistence and queue handoff
//   - Retry planning that prunes the workflow DAG to the minimal
//     subgraph that must re-execute, reusing upstream results
//   - Deterministic aggregation of run states into one work-order
//     state under concurrent worker reports
//   - Durable storage (badger or Postgres) and a project-scoped
//     event bus for created/updated notifications
//
// Basic usage:
//
//	manager, _ := foreman.New("./data", logger)
//	manager.RegisterWorkflow(workflow)
//	manager.Start(context.Background())
//
//	wo, err := manager.CreateForTrigger(ctx, foreman.TriggerParams{
//	    TriggerID:    "trigger-1",
//	    DataclipBody: []byte(`{"order_id": 42}`),
//	})
//
// The actual execution of job code belongs to external workers: they
// claim enqueued attempts, run steps, and report per-run states back
// through ReportRunState.
package foreman

import (
	"github.com/eleven-am/foreman/internal/core/workorders"
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

// WorkOrder is one triggering event's unit of trackable work. Its
// state is derived from the latest attempt's runs, never set directly.
type WorkOrder = domain.WorkOrder

// Attempt is one execution lineage of a work order: the original
// enqueue or a retry with carried-over upstream runs.
type Attempt = domain.Attempt

// Run is one job's execution within an attempt.
type Run = domain.Run

// State is the shared lifecycle vocabulary for runs, attempts and
// aggregated work-order state.
type State = domain.State

const (
	StatePending = domain.StatePending
	StateClaimed = domain.StateClaimed
	StateStarted = domain.StateStarted

	StateSuccess   = domain.StateSuccess
	StateFailed    = domain.StateFailed
	StateCrashed   = domain.StateCrashed
	StateKilled    = domain.StateKilled
	StateException = domain.StateException
	StateLost      = domain.StateLost
)

// Workflow is a DAG of jobs connected by conditional edges.
type Workflow = domain.Workflow

// Job is a workflow step definition: code plus adaptor.
type Job = domain.Job

// Trigger is a DAG root (webhook, cron or manual entry point).
type Trigger = domain.Trigger

// Edge is a conditional directed dependency between a trigger or job
// and a target job.
type Edge = domain.Edge

// Dataclip is an opaque JSON payload used as run input and output.
type Dataclip = domain.Dataclip

const (
	TriggerWebhook = domain.TriggerWebhook
	TriggerCron    = domain.TriggerCron
	TriggerManual  = domain.TriggerManual

	EdgeAlways    = domain.EdgeAlways
	EdgeOnSuccess = domain.EdgeOnSuccess
	EdgeOnFailure = domain.EdgeOnFailure
	EdgeCustom    = domain.EdgeCustom
)

// Event is the notification delivered to project subscribers on
// work-order creation and state changes.
type Event = domain.Event

// AttemptPayload is what the execution queue hands to workers.
type AttemptPayload = domain.AttemptPayload

// Config is the full manager configuration; zero-valued fields are
// filled from defaults.
type Config = domain.Config

// TriggerParams describes a webhook or cron firing.
type TriggerParams = workorders.TriggerParams

// JobParams describes a manual run started from a specific step.
type JobParams = workorders.JobParams

// RetryOptions carries the requesting actor for a retry.
type RetryOptions = workorders.RetryOptions

// Include selects which associations Get expands.
type Include = workorders.Include

// WorkOrderDetail is a work order expanded with its attempts and runs.
type WorkOrderDetail = workorders.WorkOrderDetail

// AttemptDetail is an attempt expanded with its runs.
type AttemptDetail = workorders.AttemptDetail

// ValidationError names the field or association that failed
// validation.
type ValidationError = domain.ValidationError

// WorkflowStore resolves workflow definitions; implement it to back
// the manager with an external catalog.
type WorkflowStore = ports.WorkflowStore

// IdentityStore resolves users and projects.
type IdentityStore = ports.IdentityStore

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return domain.IsValidation(err) }

// IsNotFound reports whether err means a referenced record does not
// exist.
func IsNotFound(err error) bool { return domain.IsNotFound(err) }

// DefaultConfig returns the configuration the manager uses when a
// field is left zero.
func DefaultConfig() *Config { return domain.DefaultConfig() }
