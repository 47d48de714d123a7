package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the pitch API. limit guards the routes that call a
// generation or speech backend.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/personas", h.ListPersonas)
		r.Get("/matches", h.ListMatches)
		r.Post("/sessions", h.CreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/preferences", h.PutPreferences)
			r.With(limit).Post("/personas/{personaID}/turns", h.SubmitTurn)
			r.With(limit).Get("/summary", h.GetSummary)
			r.With(limit).Post("/match", h.ComputeMatch)
		})

		r.With(limit).Post("/speech-to-text", h.SpeechToText)
		r.With(limit).Post("/tts/{personaID}", h.TextToSpeech)
	})

	r.Get("/ws/sessions/{sessionID}", h.Feed)
}
