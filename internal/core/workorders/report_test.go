package workorders

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

func TestReportRunState_Progression(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, _ := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StatePending,
	})

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateClaimed, nil))
	assert.Equal(t, domain.StateClaimed, f.workOrder(t, wo.ID).State)

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateStarted, nil))
	run := f.run(t, "run-job-a")
	assert.Equal(t, domain.StateStarted, run.State)
	require.NotNil(t, run.StartedAt)
	assert.Nil(t, run.FinishedAt)
	assert.Equal(t, domain.StateStarted, f.workOrder(t, wo.ID).State)

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateSuccess, nil))
	run = f.run(t, "run-job-a")
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, domain.StateSuccess, f.workOrder(t, wo.ID).State)
}

func TestReportRunState_TerminalOutputClip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
	})

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateSuccess, []byte(`{"rows": 10}`)))

	run := f.run(t, "run-job-a")
	require.NotEmpty(t, run.OutputDataclipID)

	clip, err := f.clips.Get(ctx, run.OutputDataclipID)
	require.NoError(t, err)
	assert.Equal(t, domain.DataclipRunResult, clip.Kind)
	assert.Equal(t, "proj-1", clip.ProjectID)
	assert.JSONEq(t, `{"rows": 10}`, string(clip.Body))
}

func TestReportRunState_InvalidReports(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
	})

	tests := []struct {
		name   string
		state  domain.State
		output []byte
		field  string
	}{
		{name: "pending is not reportable", state: domain.StatePending, field: "state"},
		{name: "unknown state", state: domain.State("exploded"), field: "state"},
		{name: "output on non-terminal", state: domain.StateStarted, output: []byte(`{}`), field: "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.ReportRunState(ctx, "run-job-a", tt.state, tt.output)
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestReportRunState_TerminalRunsAreImmutable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
	})

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateSuccess, nil))

	err := f.service.ReportRunState(ctx, "run-job-a", domain.StateFailed, nil)
	require.Error(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "run", ve.Field)

	assert.Equal(t, domain.StateSuccess, f.run(t, "run-job-a").State)
}

func TestReportRunState_UnknownRun(t *testing.T) {
	f := newFixture(t, nil)
	err := f.service.ReportRunState(context.Background(), "ghost", domain.StateSuccess, nil)
	assert.True(t, domain.IsNotFound(err))
}

func TestReportRunState_PartialCompletionStaysInProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, _ := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
		"job-d": domain.StatePending,
	})

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateSuccess, nil))

	// job-d has not even been claimed yet, so the least-advanced
	// unfinished run drives the state.
	assert.Equal(t, domain.StatePending, f.workOrder(t, wo.ID).State)

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-d", domain.StateSuccess, nil))
	assert.Equal(t, domain.StateSuccess, f.workOrder(t, wo.ID).State)
}

func TestReportRunState_FailureDominatesSuccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, _ := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
		"job-d": domain.StateStarted,
	})

	require.NoError(t, f.service.ReportRunState(ctx, "run-job-a", domain.StateSuccess, nil))
	require.NoError(t, f.service.ReportRunState(ctx, "run-job-d", domain.StateCrashed, nil))

	assert.Equal(t, domain.StateCrashed, f.workOrder(t, wo.ID).State)
}

func TestReportRunState_OnlyLatestAttemptDrivesWorkOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateSuccess,
		"job-b": domain.StateFailed,
	})

	next, err := f.service.Retry(ctx, prior.ID, "run-job-b", RetryOptions{})
	require.NoError(t, err)

	// A straggler report for a run whose attempt is no longer latest
	// must not touch the work-order state.
	straggler := domain.Run{
		ID:        "run-straggler",
		AttemptID: prior.ID,
		JobID:     "job-d",
		State:     domain.StateStarted,
	}
	require.NoError(t, f.store.RunInTransaction(func(tx ports.Transaction) error {
		if err := putRun(tx, &straggler, 0); err != nil {
			return err
		}
		attempt, version, err := getAttempt(tx, prior.ID)
		if err != nil {
			return err
		}
		attempt.RunIDs = append(attempt.RunIDs, straggler.ID)
		return putAttempt(tx, attempt, version)
	}))

	require.NoError(t, f.service.ReportRunState(ctx, "run-straggler", domain.StateFailed, nil))

	reloaded := f.workOrder(t, wo.ID)
	assert.Equal(t, domain.StatePending, reloaded.State)
	assert.Equal(t, next.ID, reloaded.LatestAttemptID())
}

func TestReportRunState_ConcurrentSiblingFinalization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, _ := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateStarted,
		"job-b": domain.StateStarted,
		"job-c": domain.StateStarted,
		"job-d": domain.StateStarted,
	})

	runIDs := []string{"run-job-a", "run-job-b", "run-job-c", "run-job-d"}

	var wg sync.WaitGroup
	for _, runID := range runIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, f.service.ReportRunState(ctx, id, domain.StateSuccess, nil))
		}(runID)
	}
	wg.Wait()

	// No lost update: whichever report landed last observed every
	// sibling terminal.
	assert.Equal(t, domain.StateSuccess, f.workOrder(t, wo.ID).State)

	attempt := f.attempt(t, wo.AttemptIDs[0])
	assert.Equal(t, domain.StateSuccess, attempt.State)
}
