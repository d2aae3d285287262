package workorders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eleven-am/foreman/internal/adapters/events"
	"github.com/eleven-am/foreman/internal/adapters/memory"
	"github.com/eleven-am/foreman/internal/adapters/queue"
	"github.com/eleven-am/foreman/internal/adapters/storage"
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

type fixture struct {
	service *Service
	store   *memory.Store
	queue   ports.QueuePort
	bus     *events.Bus
	catalog *memory.Catalog
	clips   *storage.Dataclips
}

// newFixture wires the service onto in-memory adapters with the
// reference workflow registered:
//
//	trig-1 -> job-a -> job-b -> job-c
//	              \-> job-d
func newFixture(t *testing.T, wrapQueue func(ports.QueuePort) ports.QueuePort) *fixture {
	t.Helper()

	store := memory.NewStore()
	catalog := memory.NewCatalog(nil)
	bus := events.NewBus(16, nil)
	clips := storage.NewDataclips(store, nil)

	var q ports.QueuePort = queue.NewQueue("attempts", store, nil)
	if wrapQueue != nil {
		q = wrapQueue(q)
	}

	require.NoError(t, catalog.RegisterWorkflow(referenceWorkflow()))
	catalog.RegisterUser(domain.User{ID: "user-1", Email: "ops@example.com"})
	catalog.RegisterProject(domain.Project{ID: "proj-1", Name: "pipelines"})

	service, err := NewService(Deps{
		Store:     store,
		Queue:     q,
		Bus:       bus,
		Workflows: catalog,
		Identity:  catalog,
		Dataclips: clips,
		Config:    domain.DefaultOrchestrationConfig(),
	})
	require.NoError(t, err)

	return &fixture{
		service: service,
		store:   store,
		queue:   q,
		bus:     bus,
		catalog: catalog,
		clips:   clips,
	}
}

func referenceWorkflow() domain.Workflow {
	return domain.Workflow{
		ID:        "wf-1",
		Name:      "orders",
		ProjectID: "proj-1",
		Jobs: []domain.Job{
			{ID: "job-a", Name: "fetch"},
			{ID: "job-b", Name: "transform"},
			{ID: "job-c", Name: "load"},
			{ID: "job-d", Name: "notify"},
		},
		Triggers: []domain.Trigger{
			{ID: "trig-1", Type: domain.TriggerWebhook, Enabled: true},
		},
		Edges: []domain.Edge{
			{ID: "e1", SourceTriggerID: "trig-1", TargetJobID: "job-a", Condition: domain.EdgeAlways, Enabled: true},
			{ID: "e2", SourceJobID: "job-a", TargetJobID: "job-b", Condition: domain.EdgeOnSuccess, Enabled: true},
			{ID: "e3", SourceJobID: "job-b", TargetJobID: "job-c", Condition: domain.EdgeOnSuccess, Enabled: true},
			{ID: "e4", SourceJobID: "job-a", TargetJobID: "job-d", Condition: domain.EdgeOnSuccess, Enabled: true},
		},
	}
}

// seedAttempt persists a work order with one attempt whose runs cover
// jobsToStates, bypassing the create path. Run ids are "run-<job>".
func seedAttempt(t *testing.T, f *fixture, jobsToStates map[string]domain.State) (*domain.WorkOrder, *domain.Attempt) {
	t.Helper()
	ctx := context.Background()

	clip, err := f.clips.Insert(ctx, []byte(`{"seed": true}`), "proj-1", domain.DataclipHTTPRequest)
	require.NoError(t, err)

	attempt := &domain.Attempt{
		ID:          "attempt-seed",
		WorkOrderID: "wo-seed",
		DataclipID:  clip.ID,
		State:       domain.StatePending,
	}
	wo := &domain.WorkOrder{
		ID:         "wo-seed",
		WorkflowID: "wf-1",
		ProjectID:  "proj-1",
		TriggerID:  "trig-1",
		DataclipID: clip.ID,
		AttemptIDs: []string{attempt.ID},
		State:      domain.StatePending,
	}

	err = f.store.RunInTransaction(func(tx ports.Transaction) error {
		for _, jobID := range []string{"job-a", "job-b", "job-c", "job-d"} {
			state, ok := jobsToStates[jobID]
			if !ok {
				continue
			}
			run := domain.Run{
				ID:              "run-" + jobID,
				AttemptID:       attempt.ID,
				JobID:           jobID,
				InputDataclipID: clip.ID,
				State:           state,
			}
			if err := putRun(tx, &run, 0); err != nil {
				return err
			}
			attempt.RunIDs = append(attempt.RunIDs, run.ID)
		}
		if err := putAttempt(tx, attempt, 0); err != nil {
			return err
		}
		return putWorkOrder(tx, wo, 0)
	})
	require.NoError(t, err)

	return wo, attempt
}

func (f *fixture) workOrder(t *testing.T, id string) *domain.WorkOrder {
	t.Helper()
	var wo *domain.WorkOrder
	err := f.store.RunInTransaction(func(tx ports.Transaction) error {
		var err error
		wo, _, err = getWorkOrder(tx, id)
		return err
	})
	require.NoError(t, err)
	return wo
}

func (f *fixture) attempt(t *testing.T, id string) *domain.Attempt {
	t.Helper()
	var attempt *domain.Attempt
	err := f.store.RunInTransaction(func(tx ports.Transaction) error {
		var err error
		attempt, _, err = getAttempt(tx, id)
		return err
	})
	require.NoError(t, err)
	return attempt
}

func (f *fixture) run(t *testing.T, id string) *domain.Run {
	t.Helper()
	var run *domain.Run
	err := f.store.RunInTransaction(func(tx ports.Transaction) error {
		var err error
		run, _, err = getRun(tx, id)
		return err
	})
	require.NoError(t, err)
	return run
}

func (f *fixture) countPrefix(t *testing.T, prefix string) int {
	t.Helper()
	count, err := f.store.CountPrefix(prefix)
	require.NoError(t, err)
	return count
}

// failingQueue rejects the first n enqueues, then delegates. It
// simulates a queue outage between record commit and handoff.
type failingQueue struct {
	ports.QueuePort
	failures int
}

func (q *failingQueue) Enqueue(ctx context.Context, payload domain.AttemptPayload) error {
	if q.failures > 0 {
		q.failures--
		return fmt.Errorf("queue handoff: %w", domain.ErrQueueUnavailable)
	}
	return q.QueuePort.Enqueue(ctx, payload)
}
