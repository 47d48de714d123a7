package pitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ashureev/pitch-tank/internal/convlog"
	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/feed"
	"github.com/ashureev/pitch-tank/internal/prompt"
	"github.com/ashureev/pitch-tank/internal/store"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxFeedbackItems = 3

// ErrMalformedScoreCard means the scoring reply contained no JSON object.
var ErrMalformedScoreCard = errors.New("score card reply is not a JSON object")

// moodBaseline scores a persona from its final mood when the model gives no score.
var moodBaseline = map[domain.Emotion]int{
	domain.Cool:      90,
	domain.Happy:     80,
	domain.Surprised: 70,
	domain.Neutral:   50,
	domain.Angry:     20,
}

// RecordPreferences stores an investor-preference JSON object for a session.
func (s *Service) RecordPreferences(ctx context.Context, sessionID string, raw json.RawMessage) (*domain.Preferences, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, ErrInvalidPreferences
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	prefs := &domain.Preferences{
		SessionID: sessionID,
		Data:      append(json.RawMessage(nil), raw...),
		UpdatedAt: s.now(),
	}
	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

// MatchRequest identifies the company behind a completed session.
type MatchRequest struct {
	SessionID    string
	CompanyName  string
	CompanyEmail string
}

func (r MatchRequest) validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalidMatchRequest)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(r.CompanyEmail))
	if err != nil || addr.Address != strings.TrimSpace(r.CompanyEmail) {
		return fmt.Errorf("%w: company email %q is not a plain address", ErrInvalidMatchRequest, r.CompanyEmail)
	}
	return nil
}

// ComputeMatch scores a completed session and records a match entry with a fresh id.
func (s *Service) ComputeMatch(ctx context.Context, req MatchRequest) (*domain.MatchEntry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "pitch.compute_match", trace.WithAttributes(
		attribute.String("pitch.session_id", req.SessionID),
	))
	defer span.End()

	unlock := s.locks.Lock(lockKey(req.SessionID, "#match"))
	defer unlock()

	existing, err := s.repo.GetMatchBySession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load match: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: match %d", ErrAlreadyMatched, existing.ID)
	}

	session, responses, err := s.finalResponses(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.repo.GetPreferences(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	in := prompt.MatchInput{
		CompanyName: strings.TrimSpace(req.CompanyName),
		Pitch:       session.OriginalPitch,
		Responses:   responses,
	}
	if prefs != nil {
		in.Preferences = prefs.Data
	}
	pr, err := s.prompts.Match(in)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, pr)
	if err != nil {
		return nil, &BackendError{Op: "compute match", Err: err}
	}
	feedback, overall, err := parseScoreCard(raw, responses)
	if err != nil {
		s.log.WarnContext(ctx, "Unusable score card", "session_id", req.SessionID, "error", err)
		return nil, &BackendError{Op: "compute match", Err: err}
	}

	entry := &domain.MatchEntry{
		SessionID:    req.SessionID,
		CompanyName:  in.CompanyName,
		CompanyEmail: strings.TrimSpace(req.CompanyEmail),
		Feedback:     feedback,
		MatchScore:   overall,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateMatch(ctx, entry); err != nil {
		if errors.Is(err, store.ErrMatchExists) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyMatched, err)
		}
		return nil, fmt.Errorf("save match: %w", err)
	}

	s.log.InfoContext(ctx, "Match recorded", "session_id", req.SessionID, "match_id", entry.ID, "score", entry.MatchScore)
	s.convlog.Log(convlog.Event{
		OwnerID:    session.OwnerID,
		SessionID:  req.SessionID,
		EventType:  convlog.EventMatch,
		ContentRaw: raw,
		Meta:       map[string]any{"match_id": entry.ID, "match_score": entry.MatchScore},
	})
	s.publisher.Publish(feed.Event{
		Type:      feed.EventMatch,
		SessionID: req.SessionID,
		Data:      entry,
	})
	return entry, nil
}

// ListMatches returns every recorded match ordered by id.
func (s *Service) ListMatches(ctx context.Context) ([]domain.MatchEntry, error) {
	matches, err := s.repo.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// parseScoreCard reads the model's JSON reply. Missing per-persona scores fall
// back to the mood baseline and a missing overall score to their mean.
func parseScoreCard(raw string, responses []domain.PersonaResponse) ([]domain.PersonaFeedback, int, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start || !gjson.Valid(raw[start:end+1]) {
		return nil, 0, ErrMalformedScoreCard
	}
	card := gjson.Parse(raw[start : end+1])

	feedback := make([]domain.PersonaFeedback, 0, len(responses))
	total := 0
	for _, r := range responses {
		entry := card.Get("personas." + gjsonEscape(r.PersonaID))
		score := moodBaseline[r.Mood]
		if v := entry.Get("score"); v.Exists() && v.Type == gjson.Number {
			score = clampScore(int(v.Int()))
		}
		feedback = append(feedback, domain.PersonaFeedback{
			PersonaID: r.PersonaID,
			Score:     score,
			Positives: stringList(entry.Get("positives")),
			Concerns:  stringList(entry.Get("concerns")),
			Mood:      r.Mood,
		})
		total += score
	}

	overall := 0
	if len(feedback) > 0 {
		overall = total / len(feedback)
	}
	if v := card.Get("overall_match_score"); v.Exists() && v.Type == gjson.Number {
		overall = clampScore(int(v.Int()))
	}
	return feedback, overall, nil
}

func stringList(v gjson.Result) []string {
	out := []string{}
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
		if len(out) == maxFeedbackItems {
			break
		}
	}
	return out
}

func clampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

var gjsonSpecial = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func gjsonEscape(key string) string {
	return gjsonSpecial.Replace(key)
}
