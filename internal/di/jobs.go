package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/config"
	"github.com/aristath/splitrelay/internal/scheduler"
)

// Maintenance schedules.
const (
	walCheckpointSchedule = "@hourly"
	healthCheckSchedule   = "@every 15m"
	pruneSessionsSchedule = "@every 5m"
)

// RegisterJobs creates the maintenance jobs and registers them with a new scheduler.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Coordinator == nil {
		return nil, fmt.Errorf("services must be initialized first")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(container.RegistryDB, container.PortfolioDB),
		CheckDatabases:      scheduler.NewCheckDatabasesJob(container.RegistryDB, container.PortfolioDB),
		PruneSessions:       scheduler.NewPruneSessionsJob(container.Coordinator, cfg.SessionRetention),
	}
	instances.CheckWALCheckpoints.SetLogger(log.With().Str("job", "check_wal_checkpoints").Logger())
	instances.CheckDatabases.SetLogger(log.With().Str("job", "check_databases").Logger())
	instances.PruneSessions.SetLogger(log.With().Str("job", "prune_sessions").Logger())

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{walCheckpointSchedule, instances.CheckWALCheckpoints},
		{healthCheckSchedule, instances.CheckDatabases},
		{pruneSessionsSchedule, instances.PruneSessions},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	container.Scheduler = sched
	return instances, nil
}
