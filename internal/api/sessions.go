package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/pitch-tank/internal/identity"
	"github.com/ashureev/pitch-tank/internal/pitch"
	"github.com/go-chi/chi/v5"
)

type personaInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	HasOpening  bool   `json:"has_opening"`
	HasVoice    bool   `json:"has_voice"`
	OpeningLine string `json:"opening_line,omitempty"`
}

// ListPersonas returns the enabled panel.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	all := h.svc.Catalog().All()
	out := make([]personaInfo, 0, len(all))
	for _, p := range all {
		out = append(out, personaInfo{
			ID:          p.ID,
			Name:        p.Name,
			Title:       p.Title,
			HasOpening:  p.HasOpening(),
			HasVoice:    p.VoiceID != "",
			OpeningLine: p.OpeningLine,
		})
	}
	JSON(w, http.StatusOK, map[string]any{
		"personas":  out,
		"max_turns": h.svc.MaxTurns(),
	})
}

// CreateSession starts an empty session owned by the caller.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := identity.NewSessionID()
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.svc.StartSession(r.Context(), id, identity.OwnerIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "Session created", "session_id", session.ID)
	JSON(w, http.StatusCreated, map[string]any{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
	})
}

// GetSession returns the session's pitch and per-persona state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	view, err := h.svc.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

type turnRequest struct {
	Input string `json:"input"`
}

// SubmitTurn sends the entrepreneur's message to one persona.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	var req turnRequest
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	res, err := h.svc.AdvanceTurn(r.Context(), pitch.TurnRequest{
		SessionID: sessionID,
		OwnerID:   identity.OwnerIDFromContext(r.Context()),
		PersonaID: chi.URLParam(r, "personaID"),
		Input:     req.Input,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// GetSummary returns the panel verdict. ?refresh=true regenerates it.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	summary, err := h.svc.GetSummary(r.Context(), sessionID, refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// PutPreferences stores the investor-preference object of a session.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	body, ok := readBody(w, r, h.maxBody)
	if !ok {
		return
	}

	prefs, err := h.svc.RecordPreferences(r.Context(), sessionID, json.RawMessage(body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, prefs)
}

type matchRequest struct {
	CompanyName  string `json:"company_name"`
	CompanyEmail string `json:"company_email"`
}

// ComputeMatch scores a completed session and records the match.
func (h *Handler) ComputeMatch(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	var req matchRequest
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	entry, err := h.svc.ComputeMatch(r.Context(), pitch.MatchRequest{
		SessionID:    sessionID,
		CompanyName:  req.CompanyName,
		CompanyEmail: req.CompanyEmail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, entry)
}

// ListMatches returns every recorded match.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.svc.ListMatches(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Health reports database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Feed upgrades to a websocket streaming the session's live events.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(w, sessionID) {
		return
	}
	h.hub.ServeSession(w, r, sessionID, h.origins)
}
