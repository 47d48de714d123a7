package pitch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/pitch-tank/internal/prompt"
	"github.com/ashureev/pitch-tank/internal/store"
)

var (
	ErrUnknownPersona      = errors.New("unknown persona")
	ErrConversationClosed  = errors.New("conversation is already complete for this persona")
	ErrMissingInput        = errors.New("no input provided for this turn")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidPreferences  = errors.New("preferences must be a JSON object")
	ErrInvalidMatchRequest = errors.New("invalid match request")
	ErrAlreadyMatched      = errors.New("session already has a match")
)

// BackendError wraps a failed or timed-out generation call. Nothing was committed.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Timeout reports whether the backend call ran out of time.
func (e *BackendError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IncompleteConversationError names the personas that have not finished.
type IncompleteConversationError struct {
	Personas []string
}

func (e *IncompleteConversationError) Error() string {
	return "conversation incomplete for: " + strings.Join(e.Personas, ", ")
}

// Kind classifies errors for callers that map them to transport codes.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindClosed      Kind = "conversation_closed"
	KindIncomplete  Kind = "incomplete_conversation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindBackend     Kind = "backend"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	var backendErr *BackendError
	var incompleteErr *IncompleteConversationError
	switch {
	case errors.Is(err, ErrUnknownPersona),
		errors.Is(err, ErrMissingInput),
		errors.Is(err, prompt.ErrMissingPitch),
		errors.Is(err, ErrInvalidPreferences),
		errors.Is(err, ErrInvalidMatchRequest):
		return KindValidation
	case errors.Is(err, ErrConversationClosed):
		return KindClosed
	case errors.As(err, &incompleteErr):
		return KindIncomplete
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyMatched), errors.Is(err, store.ErrTurnConflict):
		return KindConflict
	case errors.As(err, &backendErr):
		return KindBackend
	default:
		return KindInternal
	}
}
