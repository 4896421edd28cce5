package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all lot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/lots", func(r chi.Router) {
		r.Get("/", h.HandleListOpen)
		r.Post("/", h.HandleCreate)
		r.Get("/{code}", h.HandleGetByCode)
		r.Post("/{code}/renumber", h.HandleRenumber)
		r.Post("/{code}/{id}/close", h.HandleClose)
	})
}
