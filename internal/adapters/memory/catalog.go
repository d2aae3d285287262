package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/foreman/internal/domain"
)

// Catalog is the in-memory workflow/identity lookup used when no
// external store is injected. Callers register workflow snapshots,
// users and projects up front; the orchestration core only ever reads.
type Catalog struct {
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
	jobs      map[string]*domain.Job
	triggers  map[string]*domain.Trigger
	users     map[string]*domain.User
	projects  map[string]*domain.Project
	logger    *slog.Logger
}

func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{
		workflows: make(map[string]*domain.Workflow),
		jobs:      make(map[string]*domain.Job),
		triggers:  make(map[string]*domain.Trigger),
		users:     make(map[string]*domain.User),
		projects:  make(map[string]*domain.Project),
		logger:    logger.With("component", "catalog", "type", "memory"),
	}
}

// RegisterWorkflow stores the workflow and indexes its jobs and
// triggers by id. Re-registering replaces the previous snapshot.
func (c *Catalog) RegisterWorkflow(wf domain.Workflow) error {
	if wf.ID == "" {
		return domain.NewValidationError("workflow", "id cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := wf
	c.workflows[wf.ID] = &stored
	for i := range stored.Jobs {
		job := stored.Jobs[i]
		job.WorkflowID = stored.ID
		c.jobs[job.ID] = &job
	}
	for i := range stored.Triggers {
		trigger := stored.Triggers[i]
		trigger.WorkflowID = stored.ID
		c.triggers[trigger.ID] = &trigger
	}

	c.logger.Debug("workflow registered",
		"workflow_id", wf.ID,
		"jobs", len(wf.Jobs),
		"triggers", len(wf.Triggers),
		"edges", len(wf.Edges))
	return nil
}

func (c *Catalog) RegisterUser(user domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := user
	c.users[user.ID] = &stored
}

func (c *Catalog) RegisterProject(project domain.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := project
	c.projects[project.ID] = &stored
}

func (c *Catalog) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wf, ok := c.workflows[id]
	if !ok {
		return nil, domain.NewNotFoundError("workflow", id)
	}
	return wf, nil
}

func (c *Catalog) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("job", id)
	}
	return job, nil
}

func (c *Catalog) GetTrigger(ctx context.Context, id string) (*domain.Trigger, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	trigger, ok := c.triggers[id]
	if !ok {
		return nil, domain.NewNotFoundError("trigger", id)
	}
	return trigger, nil
}

func (c *Catalog) GetUser(ctx context.Context, id string) (*domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	return user, nil
}

func (c *Catalog) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	project, ok := c.projects[id]
	if !ok {
		return nil, domain.NewNotFoundError("project", id)
	}
	return project, nil
}
