package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// SessionPruner forgets finished sessions.
type SessionPruner interface {
	Prune(retention time.Duration) int
}

// PruneSessionsJob drops terminal sessions older than the retention window
type PruneSessionsJob struct {
	log       zerolog.Logger
	pruner    SessionPruner
	retention time.Duration
}

// NewPruneSessionsJob creates a new PruneSessionsJob
func NewPruneSessionsJob(pruner SessionPruner, retention time.Duration) *PruneSessionsJob {
	return &PruneSessionsJob{
		log:       zerolog.Nop(),
		pruner:    pruner,
		retention: retention,
	}
}

// SetLogger sets the logger for the job
func (j *PruneSessionsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PruneSessionsJob) Name() string {
	return "prune_sessions"
}

// Run executes the prune job
func (j *PruneSessionsJob) Run() error {
	pruned := j.pruner.Prune(j.retention)
	if pruned > 0 {
		j.log.Info().Int("pruned", pruned).Dur("retention", j.retention).Msg("Pruned finished sessions")
	}
	return nil
}
