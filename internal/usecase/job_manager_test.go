package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
	"github.com/yourusername/catalog-importer/internal/infrastructure/storage"
)

func newTestManager(retention time.Duration) *JobManager {
	return NewJobManager(storage.NewMemoryJobStore(), retention, metrics.New())
}

func TestJobManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)

	job, err := m.CreateJob(ctx, "j1", map[string]string{"source": "test"})
	require.NoError(t, err)
	assert.Equal(t, entity.JobCreated, job.Status)

	_, err = m.CreateJob(ctx, "j1", nil)
	assert.ErrorIs(t, err, apperror.ErrJobExists)

	job, err = m.UpdateStatus(ctx, "j1", entity.JobProcessing, 40, entity.JobUpdate{Stage: "parse"})
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)
	assert.NotNil(t, job.StartedAt)

	job, err = m.UpdateStatus(ctx, "j1", entity.JobProcessing, 10, entity.JobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress, "progress does not go back")
	assert.Equal(t, "parse", job.Stage)

	job, err = m.UpdateStatus(ctx, "j1", entity.JobCompleted, 90, entity.JobUpdate{Result: entity.NewImportStats()})
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)
	assert.NotNil(t, job.Result)
}

func TestJobManager_ProgressClamped(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, err := m.CreateJob(ctx, "j", nil)
	require.NoError(t, err)

	job, err := m.UpdateStatus(ctx, "j", entity.JobProcessing, 250, entity.JobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)

	job, err = m.UpdateStatus(ctx, "j", entity.JobFailed, -5, entity.JobUpdate{Error: "boom"})
	require.NoError(t, err)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "boom", job.Error)
}

func TestJobManager_TerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)
	_, err := m.UpdateStatus(ctx, "j", entity.JobProcessing, 0, entity.JobUpdate{})
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, "j", entity.JobFailed, 30, entity.JobUpdate{})
	require.NoError(t, err)

	for _, s := range []entity.JobStatus{entity.JobProcessing, entity.JobCompleted, entity.JobCancelled, entity.JobFailed} {
		_, err = m.UpdateStatus(ctx, "j", s, 50, entity.JobUpdate{})
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition, s)
	}

	_, err = m.Cancel(ctx, "j")
	assert.ErrorIs(t, err, apperror.ErrNotCancellable)
}

func TestJobManager_CreatedCannotComplete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)

	_, err := m.UpdateStatus(ctx, "j", entity.JobCompleted, 100, entity.JobUpdate{})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestJobManager_CancelWithoutPipeline(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)

	job, err := m.Cancel(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, entity.JobCancelled, job.Status)
	assert.True(t, job.CancelRequested)
	assert.NotNil(t, job.CompletedAt)
}

func TestJobManager_CancelSignalsRunningPipeline(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)
	_, err := m.UpdateStatus(ctx, "j", entity.JobProcessing, 10, entity.JobUpdate{})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Attach("j", cancel)

	job, err := m.Cancel(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, entity.JobProcessing, job.Status, "pipeline decides the final state")
	assert.True(t, job.CancelRequested)
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)

	job, err = m.UpdateStatus(ctx, "j", entity.JobCancelled, 10, entity.JobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, entity.JobCancelled, job.Status)
}

func TestJobManager_UnknownJob(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)

	_, err := m.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
	_, err = m.UpdateStatus(ctx, "nope", entity.JobProcessing, 0, entity.JobUpdate{})
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
	_, err = m.Cancel(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
}

func TestJobManager_TerminalJobsExpire(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(20 * time.Millisecond)
	_, _ = m.CreateJob(ctx, "j", nil)
	_, err := m.Cancel(ctx, "j")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := m.GetJob(ctx, "j")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestJobManager_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateJob(ctx, id, nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := m.Cancel(ctx, "b")
	require.NoError(t, err)

	jobs, err := m.ListJobs(ctx, entity.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "a", jobs[2].ID)

	jobs, err = m.ListJobs(ctx, entity.JobFilter{Status: entity.JobCancelled})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].ID)

	jobs, err = m.ListJobs(ctx, entity.JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestJobManager_Subscribe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)

	events, unsubscribe := m.Subscribe("j")
	defer unsubscribe()

	_, err := m.UpdateStatus(ctx, "j", entity.JobProcessing, 5, entity.JobUpdate{})
	require.NoError(t, err)
	m.Attach("j", func() {})
	_, err = m.Cancel(ctx, "j")
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, "j", entity.JobCancelled, 5, entity.JobUpdate{})
	require.NoError(t, err)

	var got []entity.JobEventType
	for ev := range events {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []entity.JobEventType{entity.EventJobUpdated, entity.EventJobCancelled, entity.EventJobUpdated}, got)
}

func TestJobManager_UnsubscribeClosesStream(t *testing.T) {
	m := newTestManager(time.Hour)
	events, unsubscribe := m.Subscribe("j")
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
}

func TestJobManager_SubscribeAfterTerminal(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(time.Hour)
	_, _ = m.CreateJob(ctx, "j", nil)
	_, err := m.UpdateStatus(ctx, "j", entity.JobFailed, 0, entity.JobUpdate{Error: "bad feed"})
	require.NoError(t, err)

	events, unsubscribe := m.Subscribe("j")
	defer unsubscribe()

	ev, open := <-events
	require.True(t, open)
	assert.Equal(t, entity.EventJobUpdated, ev.Type)
	assert.Equal(t, entity.JobFailed, ev.Job.Status)

	_, open = <-events
	assert.False(t, open)
}

func TestJobManager_SubscribeUnknownJob(t *testing.T) {
	events, unsubscribe := newTestManager(time.Hour).Subscribe("missing")
	defer unsubscribe()

	_, open := <-events
	assert.False(t, open)
}
