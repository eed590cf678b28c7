package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int // 처음 n번 실패

	mu    sync.Mutex
	calls int
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.calls <= j.failures {
		return errors.New("upstream unavailable")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop()).WithRetry(2, time.Millisecond)
}

func TestScheduler_AddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 15 17 * * 1-5"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "17 * *"}), "invalid expression")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	assert.Error(t, s.RunJob("a"))
}

func TestScheduler_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, 3, job.calls)
	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestScheduler_FailsAfterAllRetries(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, 3, job.calls, "one run plus two retries")
	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "upstream unavailable", history.Results[0].Error)
	assert.Equal(t, 1, s.GetJobStats()["broken"].FailureCount)
}

func TestScheduler_StopCancelsPendingRetry(t *testing.T) {
	s := New(logger.Nop()).WithRetry(5, time.Hour)
	job := &fakeJob{name: "slow", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("slow"))

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	history, err := s.GetJobHistory("slow")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, context.Canceled.Error(), history.Results[0].Error)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.SuccessRate())
	assert.Nil(t, h.Latest())
	assert.Nil(t, h.LastWhere(true))

	start := time.Date(2024, 3, 1, 17, 15, 0, 0, time.UTC)
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{StartTime: start.AddDate(0, 0, i), Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Equal(t, maxHistory/2, h.Failures())
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-12)

	latest := h.Latest()
	require.NotNil(t, latest)
	assert.True(t, latest.Success)
	assert.Equal(t, start.AddDate(0, 0, maxHistory+4), latest.StartTime)
	require.NotNil(t, h.LastWhere(false))
	assert.Equal(t, start.AddDate(0, 0, maxHistory+3), *h.LastWhere(false))
}

func TestScheduler_StatsKeepLastSuccessAfterFailure(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "fx_daily_ops", schedule: "0 15 17 * * 1-5"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)
	job.failures = 10
	s.runJob(job)

	stats := s.GetJobStats()["fx_daily_ops"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.NotNil(t, stats.LastSuccess)
	assert.NotNil(t, stats.LastFailure)

	history, err := s.GetJobHistory("fx_daily_ops")
	require.NoError(t, err)
	assert.Equal(t, 1, history.Results[0].Attempts)
	assert.Equal(t, 3, history.Results[1].Attempts)
}
