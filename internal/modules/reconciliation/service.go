package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/events"
	"github.com/aristath/splitrelay/internal/modules/lots"
	"github.com/aristath/splitrelay/internal/tasks"
)

// ErrNotHistorySync is returned when the task is not a trade history sync.
var ErrNotHistorySync = errors.New("task is not a history sync")

// TaskSource reads task rows and their results.
type TaskSource interface {
	tasks.Registry
	tasks.ResultStore
}

// LotSource reads the owner's open lots.
type LotSource interface {
	OpenLots(ctx context.Context, owner string) ([]lots.Lot, error)
}

// Observer receives classification counts.
type Observer interface {
	ObserveReconciliation(counts map[string]int)
}

// TaskReport is a report bound to the task it was produced from.
type TaskReport struct {
	TaskID      string    `json:"task_id"`
	Owner       string    `json:"owner"`
	GeneratedAt time.Time `json:"generated_at"`
	Report
}

// Service reconciles completed history sync tasks against the lot store.
type Service struct {
	tasks        TaskSource
	lots         LotSource
	eventManager *events.Manager
	observer     Observer
	log          zerolog.Logger
}

// NewService creates a reconciliation service. eventManager and observer may be nil.
func NewService(taskSource TaskSource, lotSource LotSource, eventManager *events.Manager, observer Observer, log zerolog.Logger) *Service {
	return &Service{
		tasks:        taskSource,
		lots:         lotSource,
		eventManager: eventManager,
		observer:     observer,
		log:          log.With().Str("service", "reconciliation").Logger(),
	}
}

// Reconcile builds the report of one Completed history sync task of owner. Tasks of other
// owners are reported as not found.
func (s *Service) Reconcile(ctx context.Context, owner, taskID string) (*TaskReport, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Owner != owner {
		return nil, tasks.ErrTaskNotFound
	}
	if task.Kind != tasks.KindHistorySync {
		return nil, ErrNotHistorySync
	}
	if task.Status != tasks.StatusCompleted {
		return nil, tasks.ErrResultNotReady
	}

	result, err := tasks.NewResultFetcher(s.tasks).FetchResult(ctx, taskID, tasks.KindHistorySync)
	if err != nil {
		return nil, &tasks.ResultFetchError{TaskID: taskID, Err: err}
	}
	history, err := tasks.AsHistorySync(result)
	if err != nil {
		return nil, err
	}

	open, err := s.lots.OpenLots(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load open lots: %w", err)
	}

	report := &TaskReport{
		TaskID:      taskID,
		Owner:       owner,
		GeneratedAt: time.Now().UTC(),
		Report:      Reconcile(history.Trades, open),
	}

	s.log.Info().
		Str("task_id", taskID).
		Int("buys", report.Summary.Buys).
		Int("matched", report.Summary.Matched).
		Int("unmatched", len(report.Unmatched)).
		Int("sells_skipped", report.Summary.SellsSkipped).
		Msg("Reconciliation report built")

	if s.observer != nil {
		s.observer.ObserveReconciliation(report.Summary.Counts())
	}
	if s.eventManager != nil {
		s.eventManager.Emit("reconciliation", &events.ReconciliationReadyData{
			TaskID:    taskID,
			Owner:     owner,
			Matched:   report.Summary.Matched,
			Unmatched: len(report.Unmatched),
			Skipped:   report.Summary.SellsSkipped,
		})
	}
	return report, nil
}
