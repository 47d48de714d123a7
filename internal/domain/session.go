package domain

import (
	"time"
)

// Status is the lifecycle state of one persona conversation.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusComplete   Status = "COMPLETE"
)

// PitchSession is one entrepreneur's pitch attempt against the panel.
type PitchSession struct {
	ID            string
	OwnerID       string
	OriginalPitch string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TurnRecord is one committed exchange. Records are never modified after commit.
type TurnRecord struct {
	Index           int       `json:"index"`
	UserInput       string    `json:"user_input"`
	PersonaResponse string    `json:"persona_response"`
	Mood            Emotion   `json:"mood"`
	CreatedAt       time.Time `json:"created_at"`
}

// PersonaState is the ordered history of one persona within a session.
type PersonaState struct {
	PersonaID string
	Turns     []TurnRecord
}

// TurnCount is the number of committed turns.
func (s PersonaState) TurnCount() int {
	return len(s.Turns)
}

// Status derives the lifecycle state from the committed turns.
func (s PersonaState) Status(maxTurns int) Status {
	switch n := s.TurnCount(); {
	case n == 0:
		return StatusNotStarted
	case n >= maxTurns:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

// IsComplete reports whether no further turns are accepted.
func (s PersonaState) IsComplete(maxTurns int) bool {
	return s.TurnCount() >= maxTurns
}

// Final returns the record committed at index maxTurns.
func (s PersonaState) Final(maxTurns int) (TurnRecord, bool) {
	for _, t := range s.Turns {
		if t.Index == maxTurns {
			return t, true
		}
	}
	return TurnRecord{}, false
}
