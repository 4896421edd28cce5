package events

import (
	"github.com/aristath/splitrelay/internal/tasks"
)

// TaskSink turns session status events into bus events.
type TaskSink struct {
	manager *Manager
}

// NewTaskSink creates a sink emitting through manager.
func NewTaskSink(manager *Manager) *TaskSink {
	return &TaskSink{manager: manager}
}

// SessionEvent implements tasks.EventSink.
func (s *TaskSink) SessionEvent(ev tasks.StatusEvent) {
	s.manager.Emit("tasks", dataForStatus(ev))
}

func dataForStatus(ev tasks.StatusEvent) EventData {
	switch {
	case ev.Terminal():
		return &TaskFinishedData{
			TaskID:  ev.TaskID,
			Kind:    string(ev.Kind),
			Owner:   ev.Owner,
			Outcome: string(ev.Outcome),
			Message: ev.Message,
			Error:   ev.Error,
		}
	case ev.Seq == 1:
		return &TaskSubmittedData{TaskID: ev.TaskID, Kind: string(ev.Kind), Owner: ev.Owner}
	default:
		return &TaskProgressData{
			TaskID:  ev.TaskID,
			Kind:    string(ev.Kind),
			Owner:   ev.Owner,
			Status:  string(ev.TaskStatus),
			Message: ev.Message,
		}
	}
}
