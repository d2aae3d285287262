package ports

import (
	"context"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/xjson"
)

// WorkflowStore is the read-only lookup surface for workflow
// definitions. Lookups fail with a not-found error for unknown ids.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetTrigger(ctx context.Context, id string) (*domain.Trigger, error)
}

// IdentityStore resolves users and projects by id, read-only.
type IdentityStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// DataclipStore owns the opaque JSON payloads runs consume and produce.
type DataclipStore interface {
	Get(ctx context.Context, id string) (*domain.Dataclip, error)
	Insert(ctx context.Context, body xjson.RawMessage, projectID string, kind domain.DataclipKind) (*domain.Dataclip, error)
}
