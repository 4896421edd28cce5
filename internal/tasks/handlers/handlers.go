// Package handlers provides HTTP handlers for task submission and observation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/modules/reconciliation"
	"github.com/aristath/splitrelay/internal/tasks"
)

// maxBodyBytes bounds a submission body.
const maxBodyBytes = 64 << 10

// Reconciler builds the reconciliation report of a history sync task.
type Reconciler interface {
	Reconcile(ctx context.Context, owner, taskID string) (*reconciliation.TaskReport, error)
}

// Handler handles task HTTP requests
type Handler struct {
	coordinator *tasks.Coordinator
	registry    tasks.Registry
	reconciler  Reconciler
	log         zerolog.Logger
}

// NewHandler creates a new task handler. registry is used to describe tasks the
// coordinator no longer tracks and may be nil, as may reconciler.
func NewHandler(coordinator *tasks.Coordinator, registry tasks.Registry, reconciler Reconciler, log zerolog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		registry:    registry,
		reconciler:  reconciler,
		log:         log.With().Str("handler", "tasks").Logger(),
	}
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	ID   string     `json:"id"`
	Kind tasks.Kind `json:"kind"`
}

// TaskView describes a task the coordinator is not tracking, read from the registry.
type TaskView struct {
	TaskID     string       `json:"task_id"`
	Kind       tasks.Kind   `json:"kind"`
	Owner      string       `json:"owner"`
	TaskStatus tasks.Status `json:"task_status"`
	Message    string       `json:"message,omitempty"`
}

// ResultResponse is a tagged result with an optional summary.
type ResultResponse struct {
	TaskID  string       `json:"task_id"`
	Kind    tasks.Kind   `json:"kind"`
	Data    tasks.Result `json:"data"`
	Summary interface{}  `json:"summary,omitempty"`
}

// HandleSubmit handles POST /api/tasks/kind/{kind}
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	kind, err := tasks.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := tasks.NewParams(kind)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, params); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if p, ok := params.(*tasks.AnalysisParams); ok {
		p.ApplyDefaults()
	}

	// The session outlives the request; only the owner is carried over.
	ctx := context.Background()
	if owner, ok := tasks.OwnerFromContext(r.Context()); ok {
		ctx = tasks.WithOwner(ctx, owner)
	}

	handle, err := h.coordinator.Submit(ctx, kind, params)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	h.log.Info().Str("task_id", handle.ID).Str("kind", string(kind)).Msg("Task submitted")
	h.writeJSON(w, http.StatusAccepted, SubmitResponse{ID: handle.ID, Kind: handle.Kind})
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var (
		validationErr *tasks.ValidationError
		authErr       *tasks.AuthError
		submitErr     *tasks.SubmitError
	)
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &authErr):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &submitErr):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to submit task")
		h.writeError(w, http.StatusInternalServerError, "failed to submit task")
	}
}

// HandleGet handles GET /api/tasks/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	sess, err := h.coordinator.Session(tasks.Handle{ID: id})
	if err == nil {
		snap := sess.Snapshot()
		if snap.Owner != owner {
			h.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.writeJSON(w, http.StatusOK, snap)
		return
	}

	if h.registry == nil {
		h.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := h.registry.GetTask(r.Context(), id)
	if errors.Is(err, tasks.ErrTaskNotFound) || (err == nil && task.Owner != owner) {
		h.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("task_id", id).Msg("Failed to read task")
		h.writeError(w, http.StatusInternalServerError, "failed to read task")
		return
	}
	h.writeJSON(w, http.StatusOK, TaskView{
		TaskID:     task.ID,
		Kind:       task.Kind,
		Owner:      task.Owner,
		TaskStatus: task.Status,
		Message:    task.ResultMessage,
	})
}

// HandleCancel handles DELETE /api/tasks/{id}. Cancelling is idempotent.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if sess, ok := h.ownedSession(owner, chi.URLParam(r, "id")); ok {
		sess.Cancel("cancelled by caller")
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResult handles GET /api/tasks/{id}/result
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	sess, ok := h.ownedSession(owner, id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	result, err := sess.Result()
	if err != nil {
		var fetchErr *tasks.ResultFetchError
		switch {
		case errors.Is(err, tasks.ErrResultNotReady):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &fetchErr):
			h.writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.writeError(w, http.StatusConflict, err.Error())
		}
		return
	}

	summarizer := &summaryVisitor{}
	if err := tasks.Visit(result, summarizer); err != nil {
		h.log.Error().Err(err).Str("task_id", id).Msg("Failed to summarize result")
		h.writeError(w, http.StatusInternalServerError, "failed to summarize result")
		return
	}
	h.writeJSON(w, http.StatusOK, ResultResponse{
		TaskID:  id,
		Kind:    result.Kind(),
		Data:    result,
		Summary: summarizer.summary,
	})
}

// HandleReconciliation handles GET /api/tasks/{id}/reconciliation
func (h *Handler) HandleReconciliation(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if h.reconciler == nil {
		h.writeError(w, http.StatusNotImplemented, "reconciliation is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	report, err := h.reconciler.Reconcile(r.Context(), owner, id)
	if err != nil {
		var fetchErr *tasks.ResultFetchError
		switch {
		case errors.Is(err, tasks.ErrTaskNotFound):
			h.writeError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, reconciliation.ErrNotHistorySync):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tasks.ErrResultNotReady):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &fetchErr):
			h.writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.log.Error().Err(err).Str("task_id", id).Msg("Failed to reconcile task")
			h.writeError(w, http.StatusInternalServerError, "failed to reconcile task")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ownedSession(owner, id string) (*tasks.Session, bool) {
	sess, err := h.coordinator.Session(tasks.Handle{ID: id})
	if err != nil || sess.Snapshot().Owner != owner {
		return nil, false
	}
	return sess, true
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := tasks.OwnerFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "no owner context")
		return "", false
	}
	return owner, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

type summaryVisitor struct {
	summary interface{}
}

func (v *summaryVisitor) VisitListSync(r *tasks.ListSyncResult) error {
	v.summary = r.Counts
	return nil
}

func (v *summaryVisitor) VisitHistorySync(r *tasks.HistorySyncResult) error {
	buys := 0
	for _, t := range r.Trades {
		if t.Side == tasks.SideBuy {
			buys++
		}
	}
	v.summary = map[string]int{"trades": len(r.Trades), "buys": buys, "sells": len(r.Trades) - buys}
	return nil
}

func (v *summaryVisitor) VisitAnalysis(r *tasks.AnalysisResult) error {
	v.summary = tasks.SummarizeAnalysis(r)
	return nil
}

func (v *summaryVisitor) VisitCompare(r *tasks.CompareResult) error {
	v.summary = tasks.SummarizeCompare(r)
	return nil
}
