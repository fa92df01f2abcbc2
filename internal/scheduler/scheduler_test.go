package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linhao/stockscan/pkg/logger"
)

type stubJob struct {
	name string
	err  error
	ran  chan struct{}
}

func newStubJob(name string, err error) *stubJob {
	return &stubJob{name: name, err: err, ran: make(chan struct{}, 10)}
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return "0 30 18 * * *" }
func (j *stubJob) Run(ctx context.Context) error {
	j.ran <- struct{}{}
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(newStubJob("scan", nil)))
	assert.Error(t, s.AddJob(newStubJob("scan", nil)), "duplicate job names rejected")
	assert.Equal(t, []string{"scan"}, s.Jobs())
}

func TestScheduler_RunJobImmediate(t *testing.T) {
	s := New(logger.NewNop())
	job := newStubJob("scan", nil)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("scan"))

	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	assert.Eventually(t, func() bool {
		history := s.History("scan")
		return len(history) == 1 && history[0].Success
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_RunJobUnknown(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunJob("missing"))
}

func TestScheduler_FailureRecorded(t *testing.T) {
	s := New(logger.NewNop())
	job := newStubJob("scan", errors.New("upstream down"))
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("scan"))

	<-job.ran
	assert.Eventually(t, func() bool {
		history := s.History("scan")
		return len(history) == 1 && !history[0].Success && history[0].Error == "upstream down"
	}, 2*time.Second, 10*time.Millisecond)
}
