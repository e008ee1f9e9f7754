package tasks

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers task routes. The caller mounts these behind the auth
// gate's RequireUser middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/", h.deleteAll)
	r.Get("/export", h.export)
	r.Post("/toggle-all", h.toggleAll)
	r.Delete("/completed", h.clearCompleted)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})
}
