// Package handlers provides HTTP handlers for lot operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/events"
	"github.com/aristath/splitrelay/internal/modules/lots"
	"github.com/aristath/splitrelay/internal/tasks"
)

// LotStore is the part of the lot repository the handlers use.
type LotStore interface {
	Create(ctx context.Context, lot *lots.Lot) error
	Close(ctx context.Context, owner string, id int64, price float64, date time.Time) error
	OpenLots(ctx context.Context, owner string) ([]lots.Lot, error)
	OpenLotsByCode(ctx context.Context, owner, code string) ([]lots.Lot, error)
	ApplyRenumbering(ctx context.Context, owner, code string) (*lots.RenumberResult, error)
}

// Handler handles lot HTTP requests
type Handler struct {
	store        LotStore
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new lot handler. eventManager may be nil.
func NewHandler(store LotStore, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		store:        store,
		eventManager: eventManager,
		log:          log.With().Str("handler", "lots").Logger(),
	}
}

// CreateLotRequest opens a lot
type CreateLotRequest struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	OpenedDate string  `json:"opened_date"` // YYYY-MM-DD
}

// CloseLotRequest closes a lot
type CloseLotRequest struct {
	Price      float64 `json:"price"`
	ClosedDate string  `json:"closed_date"` // YYYY-MM-DD
}

// HandleListOpen handles GET /api/lots
func (h *Handler) HandleListOpen(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	open, err := h.store.OpenLots(r.Context(), owner)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list open lots")
		h.writeError(w, http.StatusInternalServerError, "failed to list lots")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"lots": open, "count": len(open)})
}

// HandleGetByCode handles GET /api/lots/{code}
func (h *Handler) HandleGetByCode(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))
	open, err := h.store.OpenLotsByCode(r.Context(), owner, code)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("Failed to list lots")
		h.writeError(w, http.StatusInternalServerError, "failed to list lots")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"code": code, "lots": open, "count": len(open)})
}

// HandleCreate handles POST /api/lots
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opened, err := time.Parse(lots.DateLayout, req.OpenedDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "opened_date must be YYYY-MM-DD")
		return
	}

	lot := &lots.Lot{
		Owner:      owner,
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:       req.Name,
		Price:      req.Price,
		Quantity:   req.Quantity,
		OpenedDate: opened,
	}
	if err := lot.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Create(r.Context(), lot); err != nil {
		h.log.Error().Err(err).Str("code", lot.Code).Msg("Failed to create lot")
		h.writeError(w, http.StatusInternalServerError, "failed to create lot")
		return
	}
	h.writeJSON(w, http.StatusCreated, lot)
}

// HandleClose handles POST /api/lots/{code}/{id}/close
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid lot id")
		return
	}

	var req CloseLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	closed, err := time.Parse(lots.DateLayout, req.ClosedDate)
	if err != nil || req.Price <= 0 {
		h.writeError(w, http.StatusBadRequest, "price and closed_date (YYYY-MM-DD) are required")
		return
	}

	if err := h.store.Close(r.Context(), owner, id, req.Price, closed); err != nil {
		if errors.Is(err, lots.ErrLotNotFound) {
			h.writeError(w, http.StatusNotFound, "open lot not found")
			return
		}
		h.log.Error().Err(err).Int64("lot_id", id).Msg("Failed to close lot")
		h.writeError(w, http.StatusInternalServerError, "failed to close lot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRenumber handles POST /api/lots/{code}/renumber
func (h *Handler) HandleRenumber(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))

	res, err := h.store.ApplyRenumbering(r.Context(), owner, code)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("Failed to renumber lots")
		h.writeError(w, http.StatusInternalServerError, "failed to renumber lots")
		return
	}

	if h.eventManager != nil && len(res.Changes) > 0 {
		h.eventManager.Emit("lots", &events.LotsRenumberedData{
			Owner:   owner,
			Code:    code,
			Lots:    len(res.Lots),
			Changed: len(res.Changes),
		})
	}
	h.writeJSON(w, http.StatusOK, res)
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
