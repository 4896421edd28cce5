package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func() error
	runs int
}

func (j *funcJob) Name() string { return j.name }

func (j *funcJob) Run() error {
	j.runs++
	return j.fn()
}

type stubPruner struct {
	retention time.Duration
	pruned    int
}

func (p *stubPruner) Prune(retention time.Duration) int {
	p.retention = retention
	return p.pruned
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))
	job := &funcJob{name: "noop", fn: func() error { return nil }}

	require.NoError(t, s.AddJob("@hourly", job))
	require.NoError(t, s.AddJob("@every 15m", job))
	require.NoError(t, s.AddJob("0 */5 * * * *", job))
	assert.Error(t, s.AddJob("not a schedule", job))

	assert.Equal(t, 3, s.Entries())
	assert.Equal(t, []string{"noop"}, s.Jobs())

	s.Start()
	s.Stop()
}

func TestScheduler_RunNowAndRecover(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))

	failing := &funcJob{name: "failing", fn: func() error { return errors.New("boom") }}
	assert.EqualError(t, s.RunNow(failing), "boom")

	panicking := &funcJob{name: "panicking", fn: func() error { panic("bad job") }}
	assert.NotPanics(t, func() { s.run(panicking) })
	assert.Equal(t, 1, panicking.runs)

	s.run(failing)
	assert.Equal(t, 2, failing.runs)
}

func TestPruneSessionsJob(t *testing.T) {
	pruner := &stubPruner{pruned: 3}
	job := NewPruneSessionsJob(pruner, time.Hour)
	job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))

	assert.Equal(t, "prune_sessions", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, time.Hour, pruner.retention)
}
