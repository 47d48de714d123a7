package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/store"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	repo, err := store.NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()
	now := time.Now()
	for i, resp := range []string{"Bold move.", "Show me scale."} {
		_, err := repo.CommitTurn(ctx, store.TurnCommit{
			SessionID:      "s1",
			PersonaID:      "lion",
			PitchCandidate: "Solar shovels",
			Record: domain.TurnRecord{
				Index:           i + 1,
				UserInput:       []string{"Solar shovels", "We grow 20% a month"}[i],
				PersonaResponse: resp,
				Mood:            domain.Cool,
				CreatedAt:       now,
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.CreateMatch(ctx, &domain.MatchEntry{
		SessionID:    "s1",
		CompanyName:  "Acme",
		CompanyEmail: "ceo@acme.io",
		MatchScore:   72,
		CreatedAt:    now,
	}); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPersonasCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, "personas")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Leo the Lion", "Professor Owl", "Mr. Tusk", "Rocket the Rabbit", "Elle the Elephant"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSessionCommand(t *testing.T) {
	t.Parallel()
	db := seedDB(t)

	out, err := run(t, "--db", db, "session", "s1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Pitch: Solar shovels", "== Leo the Lion ==", "[2] Entrepreneur: We grow 20% a month", "Show me scale. --- Cool"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "--db", db, "session", "nope"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestMatchesCommand(t *testing.T) {
	t.Parallel()
	db := seedDB(t)

	out, err := run(t, "--db", db, "matches", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var matches []domain.MatchEntry
	if err := json.Unmarshal([]byte(out), &matches); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(matches) != 1 || matches[0].ID != 1 || matches[0].CompanyName != "Acme" {
		t.Errorf("matches = %+v", matches)
	}

	out, err = run(t, "--db", db, "matches")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ceo@acme.io") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestPruneCommand(t *testing.T) {
	t.Parallel()
	db := seedDB(t)

	out, err := run(t, "--db", db, "prune", "--older-than", "1h")
	if err != nil || !strings.Contains(out, "Pruned 0 session(s)") {
		t.Fatalf("prune fresh: %q %v", out, err)
	}

	time.Sleep(10 * time.Millisecond)
	out, err = run(t, "--db", db, "prune", "--older-than", "1ms")
	if err != nil || !strings.Contains(out, "Pruned 1 session(s)") {
		t.Fatalf("prune idle: %q %v", out, err)
	}

	out, err = run(t, "--db", db, "matches", "--json")
	if err != nil || !strings.Contains(out, "Acme") {
		t.Errorf("matches must survive pruning: %q %v", out, err)
	}
}

func TestMissingDatabase(t *testing.T) {
	t.Parallel()

	if _, err := run(t, "--db", filepath.Join(t.TempDir(), "absent.db"), "matches"); err == nil {
		t.Error("expected error for missing database")
	}
}
