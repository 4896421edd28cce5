package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers task routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/kind/{kind}", h.HandleSubmit)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleCancel)
		r.Get("/{id}/result", h.HandleResult)
		r.Get("/{id}/reconciliation", h.HandleReconciliation)
		r.Get("/{id}/stream", h.HandleStream)
		r.Get("/{id}/ws", h.HandleWebSocket)
	})
}
