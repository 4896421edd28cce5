package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TaskSubmittedData is emitted once a task row exists and polling started
type TaskSubmittedData struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
	Owner  string `json:"owner"`
}

// EventType returns the event type for TaskSubmittedData
func (d *TaskSubmittedData) EventType() EventType {
	return TaskSubmitted
}

// TaskProgressData carries the worker's progress message
type TaskProgressData struct {
	TaskID  string `json:"task_id"`
	Kind    string `json:"kind"`
	Owner   string `json:"owner"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// EventType returns the event type for TaskProgressData
func (d *TaskProgressData) EventType() EventType {
	return TaskProgress
}

// TaskFinishedData describes how a session ended. Outcome selects the event type.
type TaskFinishedData struct {
	TaskID  string `json:"task_id"`
	Kind    string `json:"kind"`
	Owner   string `json:"owner"`
	Outcome string `json:"outcome"` // completed, failed, timed_out, cancelled, rejected
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventType returns the event type for TaskFinishedData
func (d *TaskFinishedData) EventType() EventType {
	switch d.Outcome {
	case "completed":
		return TaskCompleted
	case "timed_out":
		return TaskTimedOut
	case "cancelled":
		return TaskCancelled
	default:
		return TaskFailed
	}
}

// ReconciliationReadyData summarises a reconciliation report
type ReconciliationReadyData struct {
	TaskID    string `json:"task_id"`
	Owner     string `json:"owner"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Skipped   int    `json:"skipped"`
}

// EventType returns the event type for ReconciliationReadyData
func (d *ReconciliationReadyData) EventType() EventType {
	return ReconciliationReady
}

// LotsRenumberedData is emitted after sequence numbers of an instrument were compacted
type LotsRenumberedData struct {
	Owner   string `json:"owner"`
	Code    string `json:"code"`
	Lots    int    `json:"lots"`
	Changed int    `json:"changed"`
}

// EventType returns the event type for LotsRenumberedData
func (d *LotsRenumberedData) EventType() EventType {
	return LotsRenumbered
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// MarshalJSON encodes the event with its data inlined
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
		*Alias
	}{
		Alias:     (*Alias)(e),
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON decodes the data into the payload type of the event type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return err
		}
		e.Timestamp = ts
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case TaskSubmitted:
		eventData = &TaskSubmittedData{}
	case TaskProgress:
		eventData = &TaskProgressData{}
	case TaskCompleted, TaskFailed, TaskTimedOut, TaskCancelled:
		eventData = &TaskFinishedData{}
	case ReconciliationReady:
		eventData = &ReconciliationReadyData{}
	case LotsRenumbered:
		eventData = &LotsRenumberedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		generic := &GenericEventData{Type: aux.Type}
		if err := json.Unmarshal(aux.Data, &generic.Data); err != nil {
			return err
		}
		e.Data = generic
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// OwnerOf returns the owner an event belongs to. Events without an owner (errors,
// generic data) report false.
func OwnerOf(e *Event) (string, bool) {
	if e == nil {
		return "", false
	}
	switch d := e.Data.(type) {
	case *TaskSubmittedData:
		return d.Owner, true
	case *TaskProgressData:
		return d.Owner, true
	case *TaskFinishedData:
		return d.Owner, true
	case *ReconciliationReadyData:
		return d.Owner, true
	case *LotsRenumberedData:
		return d.Owner, true
	}
	return "", false
}
