// Package prompt renders the text sent to the generation backend.
//
// Every function here is pure: identical inputs always produce byte-identical
// prompts, which keeps turns reproducible and testable.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/mood"
	"github.com/ashureev/pitch-tank/internal/persona"
)

// TurnSystem frames every persona turn.
const TurnSystem = "You are a venture capitalist assistant."

var (
	// ErrMissingPitch is returned when a turn is built before any pitch exists.
	ErrMissingPitch = errors.New("business pitch not found")
	// ErrTurnOutOfRange is returned for a turn index outside 1..max.
	ErrTurnOutOfRange = errors.New("turn index out of range")
)

// Prompt is one generation request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Settings tunes generation parameters per prompt kind.
type Settings struct {
	MaxTurns           int
	TurnMaxTokens      int
	TurnTemperature    float64
	SummaryMaxTokens   int
	SummaryTemperature float64
	MatchMaxTokens     int
	MatchTemperature   float64
}

// DefaultSettings mirrors the values the panel was tuned with.
func DefaultSettings() Settings {
	return Settings{
		MaxTurns:           3,
		TurnMaxTokens:      150,
		TurnTemperature:    0.7,
		SummaryMaxTokens:   300,
		SummaryTemperature: 0.7,
		MatchMaxTokens:     700,
		MatchTemperature:   0.2,
	}
}

// Builder renders turn, summary and match prompts.
type Builder struct {
	settings Settings
}

// NewBuilder returns a Builder. Zero-valued settings fall back to defaults.
func NewBuilder(s Settings) *Builder {
	d := DefaultSettings()
	if s.MaxTurns <= 0 {
		s.MaxTurns = d.MaxTurns
	}
	if s.TurnMaxTokens <= 0 {
		s.TurnMaxTokens = d.TurnMaxTokens
	}
	if s.SummaryMaxTokens <= 0 {
		s.SummaryMaxTokens = d.SummaryMaxTokens
	}
	if s.MatchMaxTokens <= 0 {
		s.MatchMaxTokens = d.MatchMaxTokens
	}
	return &Builder{settings: s}
}

// MaxTurns is the turn limit the builder renders against.
func (b *Builder) MaxTurns() int {
	return b.settings.MaxTurns
}

// Conversation is what a persona knows when producing turn len(History)+1.
type Conversation struct {
	Pitch string
	// History holds the committed turns 1..N-1 in order.
	History []domain.TurnRecord
	// Pending is the entrepreneur input that prompts turn N.
	Pending string
}

// Turn renders the prompt for the given persona and turn index.
func (b *Builder) Turn(p persona.Persona, conv Conversation, turn int) (Prompt, error) {
	maxTurns := b.settings.MaxTurns
	if turn < 1 || turn > maxTurns {
		return Prompt{}, fmt.Errorf("%w: %d not in 1..%d", ErrTurnOutOfRange, turn, maxTurns)
	}
	if strings.TrimSpace(conv.Pitch) == "" {
		return Prompt{}, ErrMissingPitch
	}
	if len(conv.History) != turn-1 {
		return Prompt{}, fmt.Errorf("turn %d needs %d prior turns, got %d", turn, turn-1, len(conv.History))
	}

	var sb strings.Builder
	sb.WriteString(p.Identity)
	sb.WriteString("\nYour personality traits:\n")
	for _, trait := range p.Traits {
		sb.WriteString("- ")
		sb.WriteString(trait)
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	sb.WriteString(p.MoodHeading)
	sb.WriteByte('\n')
	for _, e := range domain.Emotions {
		fmt.Fprintf(&sb, "- %s: %s\n", e, p.MoodCriteria[e])
	}
	fmt.Fprintf(&sb, "End your reply with a new line containing %q followed by exactly one of: %s.\n\n",
		mood.Separator, emotionList())

	fmt.Fprintf(&sb, "Current turn: %d/%d. ", turn, maxTurns)
	if turn == maxTurns {
		sb.WriteString(p.ConcludingInstruction)
	} else {
		sb.WriteString(p.FollowUpInstruction)
	}
	if p.Reminder != "" {
		sb.WriteByte('\n')
		sb.WriteString(p.Reminder)
	}

	sb.WriteString("\n\nBusiness Pitch: ")
	sb.WriteString(strings.TrimSpace(conv.Pitch))
	sb.WriteString("\n\n")

	if len(conv.History) > 0 {
		sb.WriteString("Previous conversation:\n")
		// The pitch already stands in for an opening input that repeats it.
		if opening := strings.TrimSpace(conv.History[0].UserInput); opening != "" && opening != strings.TrimSpace(conv.Pitch) {
			fmt.Fprintf(&sb, "Entrepreneur: %s\n", opening)
		}
		for i, rec := range conv.History {
			fmt.Fprintf(&sb, "Your response %d: %s\n", rec.Index, strings.TrimSpace(rec.PersonaResponse))
			reply := conv.Pending
			if i+1 < len(conv.History) {
				reply = conv.History[i+1].UserInput
			}
			if reply = strings.TrimSpace(reply); reply != "" {
				fmt.Fprintf(&sb, "Entrepreneur: %s\n", reply)
			}
		}
		sb.WriteByte('\n')
	} else if pending := strings.TrimSpace(conv.Pending); pending != "" && pending != strings.TrimSpace(conv.Pitch) {
		fmt.Fprintf(&sb, "Entrepreneur: %s\n\n", pending)
	}

	sb.WriteString("Your response: ")

	return Prompt{
		System:      TurnSystem,
		User:        sb.String(),
		MaxTokens:   b.settings.TurnMaxTokens,
		Temperature: b.settings.TurnTemperature,
	}, nil
}

func emotionList() string {
	names := make([]string, len(domain.Emotions))
	for i, e := range domain.Emotions {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
