package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/splitrelay/internal/tasks"
)

// MemoryRepository is an in-process registry. It also exposes the worker-side writes
// (status transitions and results) so development setups and tests can play the worker.
type MemoryRepository struct {
	mu        sync.RWMutex
	tasks     map[string]*tasks.Task
	results   map[string]tasks.Result
	createErr error
	getErr    error
	reads     map[string]int
}

// NewMemoryRepository creates an empty in-memory registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks:   make(map[string]*tasks.Task),
		results: make(map[string]tasks.Result),
		reads:   make(map[string]int),
	}
}

// CreateTask stores a pending copy of task and assigns its id.
func (m *MemoryRepository) CreateTask(ctx context.Context, task *tasks.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if task.ID != "" {
		return fmt.Errorf("task already has id %s", task.ID)
	}

	task.ID = uuid.New().String()
	task.Status = tasks.StatusPending
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	stored := *task
	m.tasks[task.ID] = &stored
	return nil
}

// GetTask returns a copy of the row.
func (m *MemoryRepository) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads[id]++
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrTaskNotFound
	}
	out := *task
	return &out, nil
}

// ListByOwner returns an owner's tasks, newest first.
func (m *MemoryRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*tasks.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*tasks.Task
	for _, t := range m.tasks {
		if t.Owner == owner {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FetchResult returns the stored result, or nil when the worker wrote none.
func (m *MemoryRepository) FetchResult(ctx context.Context, taskID string, kind tasks.Kind) (tasks.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tasks[taskID]; !ok {
		return nil, tasks.ErrTaskNotFound
	}
	return m.results[taskID], nil
}

// SetStatus performs a worker-side status transition. Transitions must be monotonic.
func (m *MemoryRepository) SetStatus(id string, status tasks.Status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return tasks.ErrTaskNotFound
	}
	if task.Status != status && !task.Status.CanAdvanceTo(status) {
		return fmt.Errorf("illegal transition %s -> %s for task %s", task.Status, status, id)
	}
	task.Status = status
	task.ResultMessage = message
	if status.IsTerminal() {
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

// Complete stores result and marks the task completed.
func (m *MemoryRepository) Complete(id string, result tasks.Result, message string) error {
	m.mu.Lock()
	if result != nil {
		m.results[id] = result
	}
	m.mu.Unlock()
	return m.SetStatus(id, tasks.StatusCompleted, message)
}

// SetCreateError makes CreateTask fail with err (nil clears it).
func (m *MemoryRepository) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// SetGetError makes GetTask fail with err (nil clears it).
func (m *MemoryRepository) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// Reads returns how many times a task row has been read.
func (m *MemoryRepository) Reads(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[id]
}

// Tasks returns copies of every stored row.
func (m *MemoryRepository) Tasks() []tasks.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tasks.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out
}
