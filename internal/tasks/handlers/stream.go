package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/splitrelay/internal/tasks"
)

const (
	streamHeartbeat = 30 * time.Second
	wsWriteTimeout  = 5 * time.Second
)

// observe subscribes to an owned session. The stream replays the session history and
// closes after the terminal event.
func (h *Handler) observe(w http.ResponseWriter, r *http.Request) (<-chan tasks.StatusEvent, func(), bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return nil, nil, false
	}
	id := chi.URLParam(r, "id")
	if _, ok := h.ownedSession(owner, id); !ok {
		h.writeError(w, http.StatusNotFound, "task not found")
		return nil, nil, false
	}
	ch, unsubscribe, err := h.coordinator.Observe(tasks.Handle{ID: id})
	if err != nil {
		h.writeError(w, http.StatusNotFound, "task not found")
		return nil, nil, false
	}
	return ch, unsubscribe, true
}

// HandleStream handles GET /api/tasks/{id}/stream (SSE)
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	ch, unsubscribe, ok := h.observe(w, r)
	if !ok {
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal status event")
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: status\ndata: %s\n\n", ev.Seq, data)
			flusher.Flush()
			if ev.Terminal() {
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// HandleWebSocket handles GET /api/tasks/{id}/ws. Each status event is one text frame;
// the server closes normally after the terminal event.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe, ok := h.observe(w, r)
	if !ok {
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Client frames are ignored; the returned context ends when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := h.writeFrame(ctx, conn, ev); err != nil {
				h.log.Debug().Err(err).Str("task_id", ev.TaskID).Msg("Failed to write websocket frame")
				return
			}
			if ev.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "task finished")
				return
			}
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, ev tasks.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
