package tasks

import (
	"context"

	"github.com/rs/zerolog"
)

// Submitter validates parameters and writes Pending rows. It never waits for the worker.
type Submitter struct {
	registry Registry
	clock    Clock
	log      zerolog.Logger
}

// NewSubmitter creates a submitter writing to registry.
func NewSubmitter(registry Registry, clock Clock, log zerolog.Logger) *Submitter {
	if clock == nil {
		clock = SystemClock
	}
	return &Submitter{
		registry: registry,
		clock:    clock,
		log:      log.With().Str("component", "task_submitter").Logger(),
	}
}

// Check runs the local checks of a submission without writing anything.
// It returns the owner the task would be submitted for.
func (s *Submitter) Check(ctx context.Context, kind Kind, params Params) (string, error) {
	if params == nil {
		return "", &ValidationError{Field: "params", Reason: "missing parameters"}
	}
	if params.Kind() != kind {
		return "", &ValidationError{Field: "params", Reason: "parameters are for " + string(params.Kind()) + ", not " + string(kind)}
	}
	if err := params.Validate(); err != nil {
		return "", err
	}
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return "", &AuthError{Reason: "no owner on request"}
	}
	return owner, nil
}

// Submit validates params and creates a Pending task, returning its handle.
func (s *Submitter) Submit(ctx context.Context, kind Kind, params Params) (Handle, error) {
	owner, err := s.Check(ctx, kind, params)
	if err != nil {
		return Handle{}, err
	}

	task := &Task{
		Owner:       owner,
		Kind:        kind,
		Status:      StatusPending,
		Params:      params,
		SubmittedAt: s.clock.Now(),
	}
	if err := s.registry.CreateTask(ctx, task); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Str("owner", owner).Msg("Failed to create task")
		return Handle{}, &SubmitError{Kind: kind, Err: err}
	}

	s.log.Info().
		Str("task_id", task.ID).
		Str("kind", string(kind)).
		Str("owner", owner).
		Msg("Task submitted")

	return Handle{ID: task.ID, Kind: kind}, nil
}
