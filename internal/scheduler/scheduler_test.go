package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name    string
	current atomic.Int32
	maxSeen atomic.Int32
	runs    atomic.Int32
	sleep   time.Duration
	err     error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	cur := j.current.Add(1)
	for {
		seen := j.maxSeen.Load()
		if cur <= seen || j.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if j.sleep > 0 {
		time.Sleep(j.sleep)
	}
	j.current.Add(-1)
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRunsRegisteredJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}

	require.NoError(t, s.AddJob("@every 10ms", job))
	assert.Equal(t, []string{"tick"}, s.JobNames())

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, job.runs.Load(), int32(1))
}

func TestSchedulerSingleFlight(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "slow", sleep: 60 * time.Millisecond}

	require.NoError(t, s.AddJob("@every 10ms", job))
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), job.maxSeen.Load(), "overlapping ticks must be skipped")
}

func TestSchedulerJobErrorDoesNotStopOthers(t *testing.T) {
	s := New(zerolog.Nop())
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	healthy := &countingJob{name: "healthy"}

	require.NoError(t, s.AddJob("@every 10ms", failing))
	require.NoError(t, s.AddJob("@every 10ms", healthy))

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, failing.runs.Load(), int32(1))
	assert.GreaterOrEqual(t, healthy.runs.Load(), int32(1))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{name: "x"})
	assert.Error(t, err)
	assert.Empty(t, s.JobNames())
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "manual"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())

	failing := &countingJob{name: "manual_fail", err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
}
