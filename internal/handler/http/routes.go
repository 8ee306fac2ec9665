package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// all record routes require a valid bearer token
	router.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/api/records", h.listStates)
		r.Post("/api/records", h.pushRecord)
		r.Get("/api/records/{recordID}", h.fetchRecord)
		r.Delete("/api/records/{recordID}", h.deleteRecord)
	})

	return router
}
