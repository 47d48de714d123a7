package pitch

import (
	"context"
	"fmt"

	"github.com/ashureev/pitch-tank/internal/convlog"
	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/feed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Summarize synthesizes one verdict from every persona's final turn and stores it.
// Persona state is only read.
func (s *Service) Summarize(ctx context.Context, sessionID string) (*domain.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "pitch.summarize", trace.WithAttributes(
		attribute.String("pitch.session_id", sessionID),
	))
	defer span.End()

	session, responses, err := s.finalResponses(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	pr, err := s.prompts.Summary(session.OriginalPitch, responses)
	if err != nil {
		return nil, err
	}
	text, err := s.generate(ctx, pr)
	if err != nil {
		s.log.WarnContext(ctx, "Summary generation failed", "session_id", sessionID, "error", err)
		return nil, &BackendError{Op: "summarize", Err: err}
	}

	summary := &domain.Summary{
		SessionID:        sessionID,
		Text:             text,
		OriginalPitch:    session.OriginalPitch,
		PersonaResponses: responses,
		CreatedAt:        s.now(),
	}
	if err := s.repo.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	s.log.InfoContext(ctx, "Session summarized", "session_id", sessionID, "personas", len(responses))
	s.convlog.Log(convlog.Event{
		OwnerID:    session.OwnerID,
		SessionID:  sessionID,
		EventType:  convlog.EventSummary,
		ContentRaw: text,
	})
	s.publisher.Publish(feed.Event{
		Type:      feed.EventSummary,
		SessionID: sessionID,
		Message:   text,
	})
	return summary, nil
}

// GetSummary returns the stored summary, generating it on first request or when refresh is set.
func (s *Service) GetSummary(ctx context.Context, sessionID string, refresh bool) (*domain.Summary, error) {
	unlock := s.locks.Lock(lockKey(sessionID, "#summary"))
	defer unlock()

	if !refresh {
		stored, err := s.repo.GetSummary(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load summary: %w", err)
		}
		if stored != nil {
			return stored, nil
		}
	}
	return s.Summarize(ctx, sessionID)
}
