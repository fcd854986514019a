package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	err      error
	runs     int
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestAddJob_RejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	job := &stubJob{name: "ingest", schedule: "0 30 17 * * 1-5"}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
}

func TestAddJob_RejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	assert.Error(t, s.AddJob(&stubJob{name: "broken", schedule: "not a cron expr"}))
}

func TestRunJob_NotFound(t *testing.T) {
	s := New(logger.NewNop())

	assert.Error(t, s.RunJob("missing"))
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	s.maxRetries = 0
	s.retryDelay = 0

	ok := &stubJob{name: "ok", schedule: "@daily"}
	failing := &stubJob{name: "failing", schedule: "@daily", err: errors.New("boom")}
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(failing))

	s.runJob(ok)
	s.runJob(failing)

	okHist := s.History("ok")
	require.Len(t, okHist, 1)
	assert.True(t, okHist[0].Success)
	assert.Equal(t, 1, ok.runs)

	failHist := s.History("failing")
	require.Len(t, failHist, 1)
	assert.False(t, failHist[0].Success)
	assert.Equal(t, "boom", failHist[0].Error)
}
