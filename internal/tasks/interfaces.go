package tasks

import (
	"context"
	"time"
)

// Registry is the durable task store shared with the worker. The client only ever
// creates rows; status and result fields are written by the worker.
type Registry interface {
	// CreateTask writes a new Pending row and assigns task.ID.
	CreateTask(ctx context.Context, task *Task) error
	// GetTask reads a row by id. Returns ErrTaskNotFound when the row does not exist.
	GetTask(ctx context.Context, id string) (*Task, error)
}

// ResultStore reads the result set the worker wrote for a completed task.
type ResultStore interface {
	FetchResult(ctx context.Context, taskID string, kind Kind) (Result, error)
}

// Timer is a single-shot timer handle.
type Timer interface {
	// Stop prevents the timer from firing. Returns false if it already fired or was stopped.
	Stop() bool
}

// Clock abstracts time so session timing can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// EventSink receives session lifecycle notifications.
type EventSink interface {
	SessionEvent(ev StatusEvent)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

type multiSink []EventSink

func (m multiSink) SessionEvent(ev StatusEvent) {
	for _, sink := range m {
		sink.SessionEvent(ev)
	}
}

// Sinks fans session events out to every non-nil sink.
func Sinks(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
