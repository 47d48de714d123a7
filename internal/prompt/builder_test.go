package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/persona"
)

func mustPersona(t *testing.T, id string) persona.Persona {
	t.Helper()
	p, ok := persona.Lookup(id)
	if !ok {
		t.Fatalf("persona %q not found", id)
	}
	return p
}

func history(n int) []domain.TurnRecord {
	recs := make([]domain.TurnRecord, n)
	for i := range recs {
		recs[i] = domain.TurnRecord{
			Index:           i + 1,
			UserInput:       "input " + string(rune('A'+i)),
			PersonaResponse: "response " + string(rune('A'+i)),
			Mood:            domain.Neutral,
		}
	}
	return recs
}

func TestTurnFirst(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Turn(mustPersona(t, "lion"), Conversation{Pitch: "Drone delivery for rural pharmacies", Pending: "Drone delivery for rural pharmacies"}, 1)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	for _, want := range []string{
		"You are Leo the Lion",
		"Current turn: 1/3. Focus on critical evaluation and specific questions.",
		"Business Pitch: Drone delivery for rural pharmacies",
		`containing "---"`,
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p.User, "Previous conversation:") || strings.Contains(p.User, "Entrepreneur:") {
		t.Error("first turn must not render history")
	}
	if !strings.HasSuffix(p.User, "Your response: ") {
		t.Error("prompt must end with the response cue")
	}
	if p.System != TurnSystem || p.MaxTokens != 150 || p.Temperature != 0.7 {
		t.Errorf("unexpected generation parameters: %+v", p)
	}
}

func TestTurnFinalUsesConcludingInstruction(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Turn(mustPersona(t, "tusk"), Conversation{Pitch: "x", History: history(2), Pending: "final answer"}, 3)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !strings.Contains(p.User, "Current turn: 3/3. Provide a final financial assessment without further questions.") {
		t.Errorf("final instruction missing:\n%s", p.User)
	}
	if strings.Contains(p.User, "ask specific questions") {
		t.Error("final turn must not carry the follow-up instruction")
	}
}

func TestTurnHistoryOrdering(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Turn(mustPersona(t, "owl"), Conversation{Pitch: "x", History: history(2), Pending: "latest"}, 3)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	want := "Previous conversation:\n" +
		"Entrepreneur: input A\n" +
		"Your response 1: response A\n" +
		"Entrepreneur: input B\n" +
		"Your response 2: response B\n" +
		"Entrepreneur: latest\n\n" +
		"Your response: "
	if !strings.HasSuffix(p.User, want) {
		t.Errorf("history rendered incorrectly:\n%s", p.User)
	}
	if !strings.Contains(p.User, "maintain your stutter") {
		t.Error("owl reminder missing")
	}
}

func TestTurnDeterministic(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	conv := Conversation{Pitch: "x", History: history(1), Pending: "y"}
	a, err := b.Turn(mustPersona(t, "lion"), conv, 2)
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.Turn(mustPersona(t, "lion"), conv, 2)
	if err != nil {
		t.Fatal(err)
	}
	if a != c {
		t.Error("identical inputs produced different prompts")
	}
}

func TestTurnErrors(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	lion := mustPersona(t, "lion")

	if _, err := b.Turn(lion, Conversation{Pitch: "  "}, 1); !errors.Is(err, ErrMissingPitch) {
		t.Errorf("blank pitch: got %v", err)
	}
	if _, err := b.Turn(lion, Conversation{Pitch: "x", History: history(3)}, 4); !errors.Is(err, ErrTurnOutOfRange) {
		t.Errorf("turn 4: got %v", err)
	}
	if _, err := b.Turn(lion, Conversation{Pitch: "x"}, 0); !errors.Is(err, ErrTurnOutOfRange) {
		t.Errorf("turn 0: got %v", err)
	}
	if _, err := b.Turn(lion, Conversation{Pitch: "x", History: history(1)}, 3); err == nil {
		t.Error("expected error for history length mismatch")
	}
}

func TestTurnFirstForSecondPersona(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Turn(mustPersona(t, "owl"), Conversation{Pitch: "X", Pending: "Y"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.User, "Business Pitch: X") || !strings.Contains(p.User, "Entrepreneur: Y") {
		t.Errorf("expected both the stored pitch and the new input:\n%s", p.User)
	}
}

func TestTurnSecondForLaterPersonaKeepsOpeningInput(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	hist := []domain.TurnRecord{{
		Index:           1,
		UserInput:       "Y owl-specific opening answer",
		PersonaResponse: "Who-who are your customers?",
		Mood:            domain.Neutral,
	}}
	p, err := b.Turn(mustPersona(t, "owl"), Conversation{Pitch: "X pitch about shovels", History: hist, Pending: "second answer"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	want := "Business Pitch: X pitch about shovels\n\n" +
		"Previous conversation:\n" +
		"Entrepreneur: Y owl-specific opening answer\n" +
		"Your response 1: Who-who are your customers?\n" +
		"Entrepreneur: second answer\n\n" +
		"Your response: "
	if !strings.HasSuffix(p.User, want) {
		t.Errorf("opening input lost from history:\n%s", p.User)
	}
}

func TestTurnSecondOmitsOpeningThatRepeatsPitch(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	hist := []domain.TurnRecord{{Index: 1, UserInput: "X", PersonaResponse: "r1", Mood: domain.Happy}}
	p, err := b.Turn(mustPersona(t, "lion"), Conversation{Pitch: "X", History: hist, Pending: "more"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p.User, "Entrepreneur: X\n") {
		t.Errorf("pitch repeated as an entrepreneur line:\n%s", p.User)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Summary("pitch text", []domain.PersonaResponse{
		{PersonaID: "lion", Name: "Leo the Lion", Response: "Scales well.", Mood: domain.Cool},
		{PersonaID: "tusk", Name: "Mr. Tusk", Response: "Margins are thin.", Mood: domain.Angry},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.System != SummarySystem || p.MaxTokens != 300 {
		t.Errorf("unexpected parameters: %+v", p)
	}
	for _, want := range []string{"2 venture capitalists", "1. Leo the Lion:\nResponse: Scales well.\nMood: Cool", "max 150 words"} {
		if !strings.Contains(p.User, want) {
			t.Errorf("summary prompt missing %q", want)
		}
	}

	if _, err := b.Summary("", nil); !errors.Is(err, ErrMissingPitch) {
		t.Errorf("blank pitch: got %v", err)
	}
}

func TestMatchEmbedsSchema(t *testing.T) {
	t.Parallel()

	b := NewBuilder(DefaultSettings())
	p, err := b.Match(MatchInput{
		CompanyName: "Acme",
		Pitch:       "pitch",
		Preferences: []byte(`{"sector":"health"}`),
		Responses:   []domain.PersonaResponse{{PersonaID: "lion", Name: "Leo the Lion", Response: "ok", Mood: domain.Happy}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Company: Acme", `{"sector":"health"}`, `"overall_match_score"`, `id "lion"`} {
		if !strings.Contains(p.User, want) {
			t.Errorf("match prompt missing %q", want)
		}
	}
}
