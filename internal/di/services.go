package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/events"
	"github.com/aristath/splitrelay/internal/metrics"
	"github.com/aristath/splitrelay/internal/modules/lots"
	"github.com/aristath/splitrelay/internal/modules/reconciliation"
	"github.com/aristath/splitrelay/internal/registry"
	"github.com/aristath/splitrelay/internal/tasks"
)

// InitializeServices builds repositories, the event pipeline and the coordinator.
func InitializeServices(container *Container, clock tasks.Clock, log zerolog.Logger) error {
	if container == nil || container.RegistryDB == nil || container.PortfolioDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.TaskRegistry = registry.NewRepository(container.RegistryDB.Conn(), container.RegistryDB.Dialect(), log)
	container.LotRepo = lots.NewRepository(container.PortfolioDB.Conn(), log)

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = metrics.New()

	// Session events fan out to the event bus and the metrics.
	sink := tasks.Sinks(events.NewTaskSink(container.EventManager), container.Metrics)
	container.Coordinator = tasks.NewCoordinator(container.TaskRegistry, container.TaskRegistry, clock, sink, log)

	container.ReconciliationService = reconciliation.NewService(
		container.TaskRegistry,
		container.LotRepo,
		container.EventManager,
		container.Metrics,
		log,
	)

	log.Info().Msg("Services initialized")
	return nil
}
