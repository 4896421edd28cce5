// Package events provides the in-process event bus and the typed event payloads.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	TaskSubmitted       EventType = "TASK_SUBMITTED"
	TaskProgress        EventType = "TASK_PROGRESS"
	TaskCompleted       EventType = "TASK_COMPLETED"
	TaskFailed          EventType = "TASK_FAILED"
	TaskTimedOut        EventType = "TASK_TIMED_OUT"
	TaskCancelled       EventType = "TASK_CANCELLED"
	ReconciliationReady EventType = "RECONCILIATION_READY"
	LotsRenumbered      EventType = "LOTS_RENUMBERED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the server streams.
var AllTypes = []EventType{
	TaskSubmitted,
	TaskProgress,
	TaskCompleted,
	TaskFailed,
	TaskTimedOut,
	TaskCancelled,
	ReconciliationReady,
	LotsRenumbered,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}
