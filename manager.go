package foreman

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/foreman/internal/adapters/events"
	"github.com/eleven-am/foreman/internal/adapters/memory"
	"github.com/eleven-am/foreman/internal/adapters/postgres"
	"github.com/eleven-am/foreman/internal/adapters/queue"
	"github.com/eleven-am/foreman/internal/adapters/storage"
	"github.com/eleven-am/foreman/internal/core/workorders"
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// Manager wires storage, queue, event bus and the orchestration core
// into one embeddable component. Construct it, register workflows and
// identities, then Start it.
type Manager struct {
	config  *domain.Config
	logger  *slog.Logger
	store   ports.StoragePort
	queue   ports.QueuePort
	bus     ports.EventBus
	catalog *memory.Catalog
	service *workorders.Service

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Manager with default configuration backed by a badger
// database at dataDir.
func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	return NewWithConfig(&domain.Config{
		DataDir: dataDir,
		Logger:  logger,
	})
}

// NewWithConfig creates a Manager from an explicit configuration;
// zero-valued fields fall back to defaults.
func NewWithConfig(config *domain.Config) (*Manager, error) {
	if config == nil {
		config = &domain.Config{}
	}

	merged, err := config.WithDefaults()
	if err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	logger := merged.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openStorage(merged, logger)
	if err != nil {
		return nil, err
	}

	attemptQueue := queue.NewQueue(merged.Orchestration.QueueName, store, logger)
	bus := events.NewBus(merged.Events.BufferSize, logger)
	catalog := memory.NewCatalog(logger)
	dataclips := storage.NewDataclips(store, logger)

	service, err := workorders.NewService(workorders.Deps{
		Store:     store,
		Queue:     attemptQueue,
		Bus:       bus,
		Workflows: catalog,
		Identity:  catalog,
		Dataclips: dataclips,
		Logger:    logger,
		Config:    merged.Orchestration,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Manager{
		config:  merged,
		logger:  logger.With("component", "manager"),
		store:   store,
		queue:   attemptQueue,
		bus:     bus,
		catalog: catalog,
		service: service,
	}, nil
}

func openStorage(config *domain.Config, logger *slog.Logger) (ports.StoragePort, error) {
	switch config.Storage.Engine {
	case domain.StorageBadger:
		return storage.Open(config.DataDir, config.Storage.SyncWrites, logger)
	case domain.StoragePostgres:
		return postgres.New(context.Background(), config.Storage.PostgresDSN, logger)
	case domain.StorageMemory:
		return memory.NewStore(), nil
	default:
		return nil, domain.NewValidationError("storage", fmt.Sprintf("unknown engine %q", config.Storage.Engine))
	}
}

// Start launches the background reconciliation sweep. It is safe to
// create work orders before Start; only the sweep needs it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	go m.sweepLoop(sweepCtx)

	m.logger.Info("manager started",
		"storage_engine", m.config.Storage.Engine,
		"queue", m.config.Orchestration.QueueName,
		"sweep_interval", m.config.Orchestration.SweepInterval)
	return nil
}

// Stop halts the sweep and releases storage, queue and bus resources.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		m.cancel()
		<-m.done
		m.started = false
	}

	var firstErr error
	if err := m.queue.Close(); err != nil {
		firstErr = err
	}
	if err := m.bus.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	m.logger.Info("manager stopped")
	return firstErr
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Orchestration.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.service.SweepUnqueued(ctx); err != nil {
				m.logger.Warn("reconciliation sweep failed", "error", err)
			}
		}
	}
}

// RegisterWorkflow makes a workflow snapshot resolvable by triggers,
// jobs and retries. Re-registering the same id replaces the snapshot;
// in-flight attempts keep the edges they were planned against.
func (m *Manager) RegisterWorkflow(workflow Workflow) error {
	return m.catalog.RegisterWorkflow(workflow)
}

// RegisterUser makes a user resolvable as a created_by actor.
func (m *Manager) RegisterUser(user domain.User) {
	m.catalog.RegisterUser(user)
}

// RegisterProject makes a project resolvable for work-order scoping.
func (m *Manager) RegisterProject(project domain.Project) {
	m.catalog.RegisterProject(project)
}

// CreateForTrigger creates and enqueues a work order for a webhook or
// cron firing.
func (m *Manager) CreateForTrigger(ctx context.Context, params TriggerParams) (*WorkOrder, error) {
	return m.service.CreateForTrigger(ctx, params)
}

// CreateForJob creates and enqueues a work order for a manual run
// started at a specific job.
func (m *Manager) CreateForJob(ctx context.Context, params JobParams) (*WorkOrder, error) {
	return m.service.CreateForJob(ctx, params)
}

// Retry resumes a work order from one run of an existing attempt,
// carrying over upstream runs whose results remain valid.
func (m *Manager) Retry(ctx context.Context, attemptID, runID string, opts RetryOptions) (*Attempt, error) {
	return m.service.Retry(ctx, attemptID, runID, opts)
}

// RetryMany retries several (attempt, run) pairs, stopping at the
// first failure.
func (m *Manager) RetryMany(ctx context.Context, pairs [][2]string, opts RetryOptions) ([]*Attempt, error) {
	return m.service.RetryMany(ctx, pairs, opts)
}

// ReportRunState records a worker's progress report for a run and
// recomputes the owning work order's state.
func (m *Manager) ReportRunState(ctx context.Context, runID string, state State, output xjson.RawMessage) error {
	return m.service.ReportRunState(ctx, runID, state, output)
}

// Get loads a work order with the requested associations expanded.
// A missing id yields (nil, nil).
func (m *Manager) Get(ctx context.Context, workOrderID string, include Include) (*WorkOrderDetail, error) {
	return m.service.Get(ctx, workOrderID, include)
}

// ClaimAttempt hands the oldest pending attempt to a worker. The claim
// id must be passed back to CompleteAttempt when the attempt's runs
// have all been reported.
func (m *Manager) ClaimAttempt(ctx context.Context) (*AttemptPayload, string, bool, error) {
	return m.queue.Claim(ctx)
}

// CompleteAttempt acknowledges a claimed attempt.
func (m *Manager) CompleteAttempt(ctx context.Context, claimID string) error {
	return m.queue.Complete(ctx, claimID)
}

// QueueSize reports how many attempts are pending.
func (m *Manager) QueueSize(ctx context.Context) (int, error) {
	return m.queue.Size(ctx)
}

// Subscribe streams a project's work-order events. The returned cancel
// function must be called to release the subscription.
func (m *Manager) Subscribe(projectID string) (<-chan Event, func(), error) {
	return m.bus.Subscribe(projectID)
}

// SweepUnqueued runs one reconciliation pass immediately, outside the
// background ticker.
func (m *Manager) SweepUnqueued(ctx context.Context) (int, error) {
	return m.service.SweepUnqueued(ctx)
}
