package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. Auth routes
// stay outside the session guard; everything else requires a valid session.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/healthz", h.Healthz)

		r.Get("/notes/tree", h.Tree)
		r.Get("/notes/*", h.GetNote)
		r.Get("/attachments/*", h.GetAttachment)

		r.Get("/search", h.Search)
		r.Post("/search/refresh", h.RefreshIndex)

		r.Get("/wikilinks", h.Wikilinks)
		r.Get("/backlinks/{stem}", h.Backlinks)
	})

	return r
}
