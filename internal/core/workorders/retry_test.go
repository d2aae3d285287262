package workorders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

func TestRetry_CarriesAncestorClosure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// job-c failed; job-d succeeded but sits outside c's ancestry.
	wo, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateSuccess,
		"job-b": domain.StateSuccess,
		"job-c": domain.StateFailed,
		"job-d": domain.StateSuccess,
	})

	next, err := f.service.Retry(ctx, prior.ID, "run-job-c", RetryOptions{CreatedByID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, wo.ID, next.WorkOrderID)
	assert.Equal(t, prior.ID, next.PriorAttemptID)
	assert.Equal(t, "job-c", next.StartingJobID)
	assert.Equal(t, "user-1", next.CreatedByID)
	assert.Equal(t, domain.StatePending, next.State)

	// Ancestors of job-c are job-a and job-b; job-d and the failed run
	// itself are not carried.
	assert.ElementsMatch(t, []string{"run-job-a", "run-job-b"}, next.CarriedRunIDs)

	require.Len(t, next.RunIDs, 1)
	restart := f.run(t, next.RunIDs[0])
	assert.Equal(t, "job-c", restart.JobID)
	assert.Equal(t, next.ID, restart.AttemptID)
	assert.Equal(t, domain.StatePending, restart.State)

	target := f.run(t, "run-job-c")
	assert.Equal(t, target.InputDataclipID, restart.InputDataclipID)
	assert.Equal(t, target.InputDataclipID, next.DataclipID)

	// The work order gained the attempt and went back to pending.
	reloaded := f.workOrder(t, wo.ID)
	assert.Equal(t, []string{prior.ID, next.ID}, reloaded.AttemptIDs)
	assert.Equal(t, domain.StatePending, reloaded.State)

	size, err := f.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, 0, f.countPrefix(t, domain.UnqueuedPrefix))
}

func TestRetry_RootRunCarriesNothing(t *testing.T) {
	f := newFixture(t, nil)

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateFailed,
	})

	next, err := f.service.Retry(context.Background(), prior.ID, "run-job-a", RetryOptions{})
	require.NoError(t, err)

	assert.Empty(t, next.CarriedRunIDs)
	assert.Equal(t, "job-a", next.StartingJobID)
	assert.Empty(t, next.CreatedByID)
}

func TestRetry_MidGraphKeepsOnlyUpstream(t *testing.T) {
	f := newFixture(t, nil)

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateSuccess,
		"job-b": domain.StateFailed,
		"job-c": domain.StateLost,
		"job-d": domain.StateSuccess,
	})

	next, err := f.service.Retry(context.Background(), prior.ID, "run-job-b", RetryOptions{})
	require.NoError(t, err)

	// Downstream job-c and sibling branch job-d both drop out.
	assert.ElementsMatch(t, []string{"run-job-a"}, next.CarriedRunIDs)
}

func TestRetry_RunMustBelongToAttempt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateFailed,
	})

	// A run owned by a different attempt.
	foreign := domain.Run{
		ID:        "run-foreign",
		AttemptID: "attempt-other",
		JobID:     "job-a",
	}
	require.NoError(t, f.store.RunInTransaction(func(tx ports.Transaction) error {
		return putRun(tx, &foreign, 0)
	}))

	_, err := f.service.Retry(ctx, prior.ID, "run-foreign", RetryOptions{})
	require.Error(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "run", ve.Field)
}

func TestRetry_UnknownRecords(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateFailed,
	})

	_, err := f.service.Retry(ctx, "ghost", "run-job-a", RetryOptions{})
	assert.True(t, domain.IsNotFound(err))

	_, err = f.service.Retry(ctx, prior.ID, "ghost", RetryOptions{})
	assert.True(t, domain.IsNotFound(err))
}

func TestRetry_UnknownActor(t *testing.T) {
	f := newFixture(t, nil)

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateFailed,
	})

	_, err := f.service.Retry(context.Background(), prior.ID, "run-job-a", RetryOptions{CreatedByID: "ghost"})
	require.Error(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "created_by", ve.Field)
}

func TestRetry_RepeatedRetriesExtendLineage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	wo, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateSuccess,
		"job-b": domain.StateFailed,
	})

	second, err := f.service.Retry(ctx, prior.ID, "run-job-b", RetryOptions{})
	require.NoError(t, err)

	// Fail the restarted run, then retry again from it.
	require.NoError(t, f.service.ReportRunState(ctx, second.RunIDs[0], domain.StateFailed, nil))

	third, err := f.service.Retry(ctx, second.ID, second.RunIDs[0], RetryOptions{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, third.PriorAttemptID)

	reloaded := f.workOrder(t, wo.ID)
	assert.Equal(t, []string{prior.ID, second.ID, third.ID}, reloaded.AttemptIDs)
}

func TestRetryMany(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateSuccess,
		"job-b": domain.StateFailed,
		"job-d": domain.StateFailed,
	})

	attempts, err := f.service.RetryMany(ctx, [][2]string{
		{prior.ID, "run-job-b"},
		{prior.ID, "run-job-d"},
	}, RetryOptions{})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "job-b", attempts[0].StartingJobID)
	assert.Equal(t, "job-d", attempts[1].StartingJobID)
}

func TestRetryMany_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, prior := seedAttempt(t, f, map[string]domain.State{
		"job-a": domain.StateFailed,
	})

	attempts, err := f.service.RetryMany(ctx, [][2]string{
		{prior.ID, "run-job-a"},
		{prior.ID, "ghost"},
		{prior.ID, "run-job-a"},
	}, RetryOptions{})
	require.Error(t, err)
	assert.Len(t, attempts, 1)
}
