/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the coordinator and is the single
 * source of truth for handlers and jobs.
 */
package di

import (
	"github.com/aristath/splitrelay/internal/database"
	"github.com/aristath/splitrelay/internal/events"
	"github.com/aristath/splitrelay/internal/metrics"
	"github.com/aristath/splitrelay/internal/modules/lots"
	"github.com/aristath/splitrelay/internal/modules/reconciliation"
	"github.com/aristath/splitrelay/internal/registry"
	"github.com/aristath/splitrelay/internal/scheduler"
	"github.com/aristath/splitrelay/internal/tasks"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases
	RegistryDB  *database.DB // task registry shared with the worker (SQLite or Postgres)
	PortfolioDB *database.DB // local lot store

	// Repositories
	TaskRegistry *registry.Repository
	LotRepo      *lots.Repository

	// Events and metrics
	EventBus     *events.Bus
	EventManager *events.Manager
	Metrics      *metrics.Metrics

	// Services
	Coordinator           *tasks.Coordinator
	ReconciliationService *reconciliation.Service

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered maintenance jobs for manual triggering.
type JobInstances struct {
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
	CheckDatabases      *scheduler.CheckDatabasesJob
	PruneSessions       *scheduler.PruneSessionsJob
}

// Close releases the databases. Safe to call on a partially initialized container.
func (c *Container) Close() {
	if c.RegistryDB != nil {
		c.RegistryDB.Close()
	}
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
}
