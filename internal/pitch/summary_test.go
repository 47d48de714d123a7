package pitch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ashureev/pitch-tank/internal/llm"
	"github.com/ashureev/pitch-tank/internal/prompt"
)

func TestSummaryRequiresEveryPersonaComplete(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()

	if _, err := f.svc.Summarize(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session: %v", err)
	}

	for i := 0; i < 3; i++ {
		f.turn(t, "s", "lion", "go")
	}
	f.turn(t, "s", "owl", "go")

	_, err := f.svc.Summarize(ctx, "s")
	var incomplete *IncompleteConversationError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteConversationError, got %v", err)
	}
	if !reflect.DeepEqual(incomplete.Personas, []string{"owl", "tusk"}) {
		t.Errorf("missing personas = %v", incomplete.Personas)
	}
	if KindOf(err) != KindIncomplete {
		t.Errorf("kind = %s", KindOf(err))
	}
}

func TestSummarizeUsesFinalResponses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.gen.turn = func(req llm.Request) (string, error) {
		if strings.Contains(req.User, "Current turn: 3/3.") {
			return "Final verdict. --- Cool", nil
		}
		return "Tell me more. --- Neutral", nil
	}
	f.gen.summary = func(req llm.Request) (string, error) {
		return "  The panel is cautiously optimistic.  ", nil
	}

	f.complete(t, "s")
	summary, err := f.svc.Summarize(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}

	if summary.OriginalPitch != "lion answer 1" {
		t.Errorf("pitch = %q", summary.OriginalPitch)
	}
	if len(summary.PersonaResponses) != 3 {
		t.Fatalf("responses = %+v", summary.PersonaResponses)
	}
	for _, r := range summary.PersonaResponses {
		if r.Response != "Final verdict." || r.Mood != "Cool" {
			t.Errorf("response for %s = %+v", r.PersonaID, r)
		}
	}

	req := f.gen.lastRequest()
	if req.System != prompt.SummarySystem {
		t.Fatalf("last request was not a summary prompt")
	}
	if strings.Contains(req.User, "Tell me more.") {
		t.Error("summary prompt must only carry final responses")
	}

	// Persona state is unchanged.
	view, err := f.svc.Session(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range view.Personas {
		if p.TurnCount != 3 {
			t.Errorf("%s turn count = %d", p.ID, p.TurnCount)
		}
	}
}

func TestGetSummaryReturnsStoredUnlessRefreshed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()

	n := 0
	f.gen.summary = func(req llm.Request) (string, error) {
		n++
		return strings.Repeat("summary ", n), nil
	}
	f.complete(t, "s")

	first, err := f.svc.GetSummary(ctx, "s", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.GetSummary(ctx, "s", false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || first.Text != second.Text {
		t.Errorf("stored summary not reused: n=%d %q vs %q", n, first.Text, second.Text)
	}

	refreshed, err := f.svc.GetSummary(ctx, "s", true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || refreshed.Text == first.Text {
		t.Errorf("refresh did not regenerate: n=%d %q", n, refreshed.Text)
	}
}

func TestSummaryBackendFailureStoresNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.gen.summary = func(req llm.Request) (string, error) {
		return "", errors.New("quota exceeded")
	}
	f.complete(t, "s")

	if _, err := f.svc.GetSummary(ctx, "s", false); KindOf(err) != KindBackend {
		t.Fatalf("expected backend error, got %v", err)
	}
	stored, err := f.repo.GetSummary(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Errorf("failed summary was stored: %+v", stored)
	}
}

func TestEndToEndPanel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	const pitchText = "AI-powered logistics platform"
	f.gen.summary = func(req llm.Request) (string, error) {
		if !strings.Contains(req.User, pitchText) {
			return "", errors.New("summary prompt lost the pitch")
		}
		return "Verdict on the " + pitchText + ": promising.", nil
	}

	for _, id := range []string{"lion", "owl", "tusk"} {
		inputs := []string{pitchText, "We have 40 pilot customers", "Break-even in 18 months"}
		for i, in := range inputs {
			res := f.turn(t, "e2e", id, in)
			if res.Turn != i+1 || res.IsComplete != (i == 2) || !res.Mood.Valid() {
				t.Fatalf("%s turn %d = %+v", id, i+1, res)
			}
		}
	}

	summary, err := f.svc.Summarize(ctx, "e2e")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(summary.Text, pitchText) || summary.OriginalPitch != pitchText {
		t.Errorf("summary = %+v", summary)
	}
}
