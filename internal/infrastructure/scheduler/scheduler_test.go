package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testJob is a controllable Job for scheduler tests.
type testJob struct {
	name    string
	runs    atomic.Int64
	err     error
	block   chan struct{} // when non-nil, Run waits until closed
	started chan struct{} // closed once Run has begun
	once    sync.Once
}

func newTestJob(name string) *testJob {
	return &testJob{name: name, started: make(chan struct{})}
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job " + j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.once.Do(func() { close(j.started) })
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestRegister_Duplicate(t *testing.T) {
	s := New(DefaultConfig())
	job := newTestJob("sweep")

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	err := s.Register(job, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestRegister_NilArgs(t *testing.T) {
	s := New(DefaultConfig())

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(newTestJob("sweep"), nil), ErrNilSchedule)
}

func TestStartStop(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	require.NoError(t, s.Register(newTestJob("sweep"), NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestDueJobRuns(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := newTestJob("sweep")
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	select {
	case <-job.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestRunNow(t *testing.T) {
	s := New(DefaultConfig())
	job := newTestJob("sweep")
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sweep", result.JobName)
	assert.Equal(t, int64(1), job.runs.Load())

	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	require.NotNil(t, info.LastResult)
	assert.True(t, info.LastResult.Success)
}

func TestRunNow_NotFound(t *testing.T) {
	s := New(DefaultConfig())

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNow_SingleFlight(t *testing.T) {
	s := New(DefaultConfig())
	job := newTestJob("sweep")
	job.block = make(chan struct{})
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "sweep")
	}()

	<-job.started

	// Second manual run while the first is in flight.
	_, err := s.RunNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	<-done
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestRunNow_FailureRecorded(t *testing.T) {
	s := New(DefaultConfig())
	job := newTestJob("sweep")
	job.err = errors.New("store unavailable")
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")

	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	info, gerr := s.GetJobInfo("sweep")
	require.NoError(t, gerr)
	assert.False(t, info.LastResult.Success)
}

func TestDisabledJobDoesNotRun(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := newTestJob("sweep")
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))
	require.NoError(t, s.DisableJob("sweep"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int64(0), job.runs.Load())
}

func TestListJobs(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(newTestJob("a"), NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Register(newTestJob("b"), MustParseCronExpression(EveryHour)))

	infos := s.ListJobs()
	assert.Len(t, infos, 2)

	_, err := s.GetJobInfo("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestHistoryBounded(t *testing.T) {
	s := New(Config{MaxHistorySize: 3})
	job := newTestJob("sweep")
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}

	history := s.GetHistory(0)
	assert.Len(t, history, 3)
}

func TestMetrics(t *testing.T) {
	s := New(DefaultConfig())
	ok := newTestJob("ok")
	bad := newTestJob("bad")
	bad.err = errors.New("boom")
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(bad, NewIntervalSchedule(time.Hour)))

	_, _ = s.RunNow(context.Background(), "ok")
	_, _ = s.RunNow(context.Background(), "bad")

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalSuccesses)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, 0.5, snap.SuccessRate)
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(5*time.Minute), sched.Next(now))
	assert.Equal(t, "@every 5m0s", sched.String())
}
