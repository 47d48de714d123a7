// Package pitch orchestrates multi-persona pitch conversations: turn
// sequencing, summaries and match scoring.
package pitch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/pitch-tank/internal/convlog"
	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/feed"
	"github.com/ashureev/pitch-tank/internal/llm"
	"github.com/ashureev/pitch-tank/internal/mood"
	"github.com/ashureev/pitch-tank/internal/persona"
	"github.com/ashureev/pitch-tank/internal/prompt"
	"github.com/ashureev/pitch-tank/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultGenerateTimeout = 60 * time.Second

// Publisher receives live session events.
type Publisher interface {
	Publish(feed.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(feed.Event) {}

// Options configures a Service. Zero values select defaults.
type Options struct {
	GenerateTimeout time.Duration
	Logger          *slog.Logger
	ConvLog         convlog.Logger
	Publisher       Publisher
	Now             func() time.Time
}

// Service runs pitch sessions against the persona panel.
type Service struct {
	repo    store.Repository
	catalog *persona.Catalog
	prompts *prompt.Builder
	gen     llm.Generator

	maxTurns        int
	generateTimeout time.Duration
	locks           *keyedMutex
	log             *slog.Logger
	convlog         convlog.Logger
	publisher       Publisher
	tracer          trace.Tracer
	now             func() time.Time
}

// NewService wires a Service. The turn limit comes from the prompt builder.
func NewService(repo store.Repository, catalog *persona.Catalog, prompts *prompt.Builder, gen llm.Generator, opts Options) *Service {
	s := &Service{
		repo:            repo,
		catalog:         catalog,
		prompts:         prompts,
		gen:             gen,
		maxTurns:        prompts.MaxTurns(),
		generateTimeout: opts.GenerateTimeout,
		locks:           newKeyedMutex(),
		log:             opts.Logger,
		convlog:         opts.ConvLog,
		publisher:       opts.Publisher,
		tracer:          otel.Tracer("github.com/ashureev/pitch-tank/internal/pitch"),
		now:             opts.Now,
	}
	if s.generateTimeout <= 0 {
		s.generateTimeout = defaultGenerateTimeout
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.convlog == nil {
		s.convlog = convlog.Nop{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// MaxTurns is the per-persona turn limit.
func (s *Service) MaxTurns() int { return s.maxTurns }

// Catalog returns the enabled personas.
func (s *Service) Catalog() *persona.Catalog { return s.catalog }

// TurnRequest is one entrepreneur message to one persona.
type TurnRequest struct {
	SessionID string
	OwnerID   string
	PersonaID string
	Input     string
}

// TurnResult is the persona's reply.
type TurnResult struct {
	Message    string         `json:"message"`
	Mood       domain.Emotion `json:"mood"`
	Turn       int            `json:"turn"`
	IsComplete bool           `json:"isComplete"`
}

// StartSession records an empty session owned by ownerID.
func (s *Service) StartSession(ctx context.Context, sessionID, ownerID string) (*domain.PitchSession, error) {
	now := s.now()
	session := &domain.PitchSession{ID: sessionID, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// AdvanceTurn sends input to a persona and commits its reply.
// A failed generation commits nothing, so the call can simply be retried.
func (s *Service) AdvanceTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	p, ok := s.catalog.Get(req.PersonaID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, req.PersonaID)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrSessionNotFound
	}
	input := strings.TrimSpace(req.Input)

	ctx, span := s.tracer.Start(ctx, "pitch.advance_turn", trace.WithAttributes(
		attribute.String("pitch.session_id", req.SessionID),
		attribute.String("pitch.persona", p.ID),
	))
	defer span.End()

	unlock := s.locks.Lock(lockKey(req.SessionID, p.ID))
	defer unlock()

	turns, err := s.repo.ListTurns(ctx, req.SessionID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load persona state: %w", err)
	}
	count := len(turns)
	if count >= s.maxTurns {
		return nil, ErrConversationClosed
	}

	if input == "" {
		if count == 0 && p.HasOpening() {
			return s.opening(req, p), nil
		}
		return nil, ErrMissingInput
	}

	pitchText, err := s.storedPitch(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	candidate := ""
	if count == 0 && pitchText == "" {
		// Opening turns queue here until one of them commits the pitch.
		release := s.locks.Lock(lockKey(req.SessionID, "#pitch"))
		defer release()
		if pitchText, err = s.storedPitch(ctx, req.SessionID); err != nil {
			return nil, err
		}
		if pitchText == "" {
			pitchText = input
			candidate = input
		}
	}

	index := count + 1
	pr, err := s.prompts.Turn(p, prompt.Conversation{Pitch: pitchText, History: turns, Pending: input}, index)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, pr)
	if err != nil {
		s.log.WarnContext(ctx, "Persona generation failed",
			"session_id", req.SessionID, "persona", p.ID, "turn", index, "error", err)
		return nil, &BackendError{Op: "advance turn", Err: err}
	}

	message, emotion := mood.Parse(raw)
	rec := domain.TurnRecord{
		Index:           index,
		UserInput:       input,
		PersonaResponse: message,
		Mood:            emotion,
		CreatedAt:       s.now(),
	}
	if _, err := s.repo.CommitTurn(ctx, store.TurnCommit{
		SessionID:      req.SessionID,
		OwnerID:        req.OwnerID,
		PersonaID:      p.ID,
		PitchCandidate: candidate,
		Record:         rec,
	}); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	result := &TurnResult{
		Message:    message,
		Mood:       emotion,
		Turn:       index,
		IsComplete: index >= s.maxTurns,
	}

	s.log.InfoContext(ctx, "Persona turn committed",
		"session_id", req.SessionID, "persona", p.ID, "turn", index, "mood", emotion, "complete", result.IsComplete)
	s.convlog.Log(convlog.Event{
		OwnerID:    req.OwnerID,
		SessionID:  req.SessionID,
		PersonaID:  p.ID,
		EventType:  convlog.EventTurn,
		Turn:       index,
		Input:      input,
		ContentRaw: raw,
		Mood:       string(emotion),
	})
	s.publisher.Publish(feed.Event{
		Type:       feed.EventTurn,
		SessionID:  req.SessionID,
		PersonaID:  p.ID,
		Turn:       index,
		Message:    message,
		Mood:       string(emotion),
		IsComplete: result.IsComplete,
	})
	return result, nil
}

func (s *Service) storedPitch(ctx context.Context, sessionID string) (string, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return "", nil
	}
	return session.OriginalPitch, nil
}

func (s *Service) opening(req TurnRequest, p persona.Persona) *TurnResult {
	s.convlog.Log(convlog.Event{
		OwnerID:   req.OwnerID,
		SessionID: req.SessionID,
		PersonaID: p.ID,
		EventType: convlog.EventOpening,
		Content:   p.OpeningLine,
		Mood:      string(domain.Neutral),
	})
	return &TurnResult{Message: p.OpeningLine, Mood: domain.Neutral, Turn: 0, IsComplete: false}
}

// generate bounds a backend call by the configured timeout.
func (s *Service) generate(ctx context.Context, pr prompt.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()
	return s.gen.Generate(ctx, llm.Request{
		System:      pr.System,
		User:        pr.User,
		MaxTokens:   pr.MaxTokens,
		Temperature: pr.Temperature,
	})
}

// PersonaView is one persona's progress within a session.
type PersonaView struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Status    domain.Status       `json:"status"`
	TurnCount int                 `json:"turn_count"`
	Turns     []domain.TurnRecord `json:"turns"`
}

// SessionView is the full state of a session.
type SessionView struct {
	ID            string        `json:"id"`
	OriginalPitch string        `json:"original_pitch"`
	MaxTurns      int           `json:"max_turns"`
	Personas      []PersonaView `json:"personas"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Session returns the state of every enabled persona in a session.
func (s *Service) Session(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	all, err := s.repo.ListSessionTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	view := &SessionView{
		ID:            session.ID,
		OriginalPitch: session.OriginalPitch,
		MaxTurns:      s.maxTurns,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
	for _, p := range s.catalog.All() {
		state := domain.PersonaState{PersonaID: p.ID, Turns: all[p.ID]}
		turns := state.Turns
		if turns == nil {
			turns = []domain.TurnRecord{}
		}
		view.Personas = append(view.Personas, PersonaView{
			ID:        p.ID,
			Name:      p.Name,
			Status:    state.Status(s.maxTurns),
			TurnCount: state.TurnCount(),
			Turns:     turns,
		})
	}
	return view, nil
}

// finalResponses returns each persona's concluding record, or an
// IncompleteConversationError naming the personas still talking.
func (s *Service) finalResponses(ctx context.Context, sessionID string) (*domain.PitchSession, []domain.PersonaResponse, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}
	all, err := s.repo.ListSessionTurns(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load turns: %w", err)
	}

	var missing []string
	var responses []domain.PersonaResponse
	for _, p := range s.catalog.All() {
		state := domain.PersonaState{PersonaID: p.ID, Turns: all[p.ID]}
		final, ok := state.Final(s.maxTurns)
		if !state.IsComplete(s.maxTurns) || !ok {
			missing = append(missing, p.ID)
			continue
		}
		responses = append(responses, domain.PersonaResponse{
			PersonaID: p.ID,
			Name:      p.Name,
			Response:  final.PersonaResponse,
			Mood:      final.Mood,
		})
	}
	if len(missing) > 0 {
		return nil, nil, &IncompleteConversationError{Personas: missing}
	}
	return session, responses, nil
}
