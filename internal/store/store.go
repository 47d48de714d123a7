// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/pitch-tank/internal/domain"
)

var (
	// ErrTurnConflict means the turn index was already taken or skipped ahead.
	ErrTurnConflict = errors.New("turn index conflict")
	// ErrMatchExists means the session already has a match entry.
	ErrMatchExists = errors.New("match already recorded for session")
)

// TurnCommit is one turn to append atomically.
type TurnCommit struct {
	SessionID string
	OwnerID   string
	PersonaID string
	// PitchCandidate is stored as the session pitch only if none is set yet.
	PitchCandidate string
	Record         domain.TurnRecord
}

// Repository defines the interface for persisting pitch sessions and their results.
type Repository interface {
	// CreateSession inserts a session; an existing id is left untouched.
	CreateSession(ctx context.Context, session *domain.PitchSession) error

	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.PitchSession, error)

	// ListTurns returns one persona's committed turns ordered by index.
	ListTurns(ctx context.Context, sessionID, personaID string) ([]domain.TurnRecord, error)

	// ListSessionTurns returns every persona's turns keyed by persona id.
	ListSessionTurns(ctx context.Context, sessionID string) (map[string][]domain.TurnRecord, error)

	// CommitTurn appends a turn and captures the pitch in one transaction,
	// returning the session's stored pitch. The record index must be exactly
	// one past the current count or ErrTurnConflict is returned.
	CommitTurn(ctx context.Context, c TurnCommit) (string, error)

	// GetSummary returns nil, nil when no summary is stored.
	GetSummary(ctx context.Context, sessionID string) (*domain.Summary, error)

	// SaveSummary creates or replaces a session summary.
	SaveSummary(ctx context.Context, summary *domain.Summary) error

	// GetPreferences returns nil, nil when none are stored.
	GetPreferences(ctx context.Context, sessionID string) (*domain.Preferences, error)

	// SavePreferences creates or replaces the preferences blob.
	SavePreferences(ctx context.Context, prefs *domain.Preferences) error

	// CreateMatch assigns the next match id and stores the entry.
	CreateMatch(ctx context.Context, entry *domain.MatchEntry) error

	// GetMatchBySession returns nil, nil when the session has no match.
	GetMatchBySession(ctx context.Context, sessionID string) (*domain.MatchEntry, error)

	// ListMatches returns all matches ordered by id.
	ListMatches(ctx context.Context) ([]domain.MatchEntry, error)

	// DeleteIdleSessions removes sessions not updated within ttl along with
	// their turns, summaries and preferences. Matches are kept.
	DeleteIdleSessions(ctx context.Context, ttl time.Duration) ([]string, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
