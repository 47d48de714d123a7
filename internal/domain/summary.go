package domain

import (
	"encoding/json"
	"time"
)

// PersonaResponse is one persona's concluding stance.
type PersonaResponse struct {
	PersonaID string  `json:"persona_id"`
	Name      string  `json:"name"`
	Response  string  `json:"response"`
	Mood      Emotion `json:"mood"`
}

// Summary is the synthesized verdict across all personas.
type Summary struct {
	SessionID        string            `json:"session_id"`
	Text             string            `json:"summary"`
	OriginalPitch    string            `json:"original_pitch"`
	PersonaResponses []PersonaResponse `json:"persona_responses"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Preferences is an opaque investor-preference JSON object for a session.
type Preferences struct {
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PersonaFeedback is the per-persona portion of a match.
type PersonaFeedback struct {
	PersonaID string   `json:"persona_id"`
	Score     int      `json:"score"`
	Positives []string `json:"positives"`
	Concerns  []string `json:"concerns"`
	Mood      Emotion  `json:"mood"`
}

// MatchEntry is the persisted match record of a completed session.
type MatchEntry struct {
	ID           int64             `json:"id"`
	SessionID    string            `json:"session_id"`
	CompanyName  string            `json:"company_name"`
	CompanyEmail string            `json:"company_email"`
	Feedback     []PersonaFeedback `json:"persona_feedback"`
	MatchScore   int               `json:"match_score"`
	CreatedAt    time.Time         `json:"created_at"`
}
