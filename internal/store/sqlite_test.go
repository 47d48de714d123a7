package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/pitch-tank/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(idx int, input string) domain.TurnRecord {
	return domain.TurnRecord{
		Index:           idx,
		UserInput:       input,
		PersonaResponse: fmt.Sprintf("response %d", idx),
		Mood:            domain.Happy,
		CreatedAt:       time.Now(),
	}
}

func TestCommitTurnCapturesFirstPitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	pitch, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s1", PersonaID: "lion", PitchCandidate: "X", Record: record(1, "X")})
	if err != nil {
		t.Fatalf("CommitTurn lion: %v", err)
	}
	if pitch != "X" {
		t.Fatalf("pitch = %q, want X", pitch)
	}

	pitch, err = s.CommitTurn(ctx, TurnCommit{SessionID: "s1", PersonaID: "owl", PitchCandidate: "Y", Record: record(1, "Y")})
	if err != nil {
		t.Fatalf("CommitTurn owl: %v", err)
	}
	if pitch != "X" {
		t.Errorf("second writer replaced pitch: %q", pitch)
	}

	session, err := s.GetSession(ctx, "s1")
	if err != nil || session == nil {
		t.Fatalf("GetSession: %v, %v", session, err)
	}
	if session.OriginalPitch != "X" {
		t.Errorf("stored pitch = %q", session.OriginalPitch)
	}
}

func TestCommitTurnRejectsOutOfOrderIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s", PersonaID: "lion", PitchCandidate: "p", Record: record(1, "p")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s", PersonaID: "lion", Record: record(1, "again")}); !errors.Is(err, ErrTurnConflict) {
		t.Errorf("duplicate index: got %v", err)
	}
	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s", PersonaID: "lion", Record: record(3, "skip")}); !errors.Is(err, ErrTurnConflict) {
		t.Errorf("skipped index: got %v", err)
	}

	turns, err := s.ListTurns(ctx, "s", "lion")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].UserInput != "p" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestConcurrentCommitsAssignUniqueIndexes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CommitTurn(ctx, TurnCommit{SessionID: "race", PersonaID: "owl", PitchCandidate: "p", Record: record(1, "p")})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d commits of index 1 succeeded, want exactly 1", succeeded)
	}
}

func TestListSessionTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s", PersonaID: "tusk", PitchCandidate: "p", Record: record(i, fmt.Sprint(i))}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "s", PersonaID: "lion", Record: record(1, "l")}); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListSessionTurns(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(all["tusk"]) != 3 || len(all["lion"]) != 1 {
		t.Fatalf("grouping wrong: %+v", all)
	}
	for i, rec := range all["tusk"] {
		if rec.Index != i+1 {
			t.Errorf("tusk turn %d has index %d", i, rec.Index)
		}
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if got, err := s.GetSession(ctx, "nope"); got != nil || err != nil {
		t.Errorf("GetSession = %v, %v", got, err)
	}
	if got, err := s.GetSummary(ctx, "nope"); got != nil || err != nil {
		t.Errorf("GetSummary = %v, %v", got, err)
	}
	if got, err := s.GetPreferences(ctx, "nope"); got != nil || err != nil {
		t.Errorf("GetPreferences = %v, %v", got, err)
	}
	if got, err := s.GetMatchBySession(ctx, "nope"); got != nil || err != nil {
		t.Errorf("GetMatchBySession = %v, %v", got, err)
	}
}

func TestSummaryAndPreferencesUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	summary := &domain.Summary{
		SessionID:     "s",
		Text:          "first",
		OriginalPitch: "p",
		PersonaResponses: []domain.PersonaResponse{
			{PersonaID: "lion", Name: "Leo the Lion", Response: "r", Mood: domain.Cool},
		},
		CreatedAt: time.Now(),
	}
	if err := s.SaveSummary(ctx, summary); err != nil {
		t.Fatal(err)
	}
	summary.Text = "second"
	if err := s.SaveSummary(ctx, summary); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSummary(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "second" || len(got.PersonaResponses) != 1 || got.PersonaResponses[0].Mood != domain.Cool {
		t.Errorf("summary = %+v", got)
	}

	prefs := &domain.Preferences{SessionID: "s", Data: json.RawMessage(`{"stage":"seed"}`), UpdatedAt: time.Now()}
	if err := s.SavePreferences(ctx, prefs); err != nil {
		t.Fatal(err)
	}
	gotPrefs, err := s.GetPreferences(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if string(gotPrefs.Data) != `{"stage":"seed"}` {
		t.Errorf("prefs = %s", gotPrefs.Data)
	}
}

func TestCreateMatchAssignsSequentialIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateMatch(ctx, &domain.MatchEntry{
				SessionID:   fmt.Sprintf("s%d", i),
				CompanyName: "Acme",
				Feedback:    []domain.PersonaFeedback{{PersonaID: "lion", Score: 70}},
				MatchScore:  70,
				CreatedAt:   time.Now(),
			})
			if err != nil {
				t.Errorf("CreateMatch: %v", err)
			}
		}(i)
	}
	wg.Wait()

	matches, err := s.ListMatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 10 {
		t.Fatalf("got %d matches", len(matches))
	}
	for i, m := range matches {
		if m.ID != int64(i+1) {
			t.Errorf("match %d has id %d", i, m.ID)
		}
		if len(m.Feedback) != 1 || m.Feedback[0].Score != 70 {
			t.Errorf("feedback not round-tripped: %+v", m.Feedback)
		}
	}

	if err := s.CreateMatch(ctx, &domain.MatchEntry{SessionID: "s0", CreatedAt: time.Now()}); !errors.Is(err, ErrMatchExists) {
		t.Errorf("duplicate session match: got %v", err)
	}

	// A failed insert still consumed nothing visible: the next id continues the sequence.
	next := &domain.MatchEntry{SessionID: "fresh", CreatedAt: time.Now()}
	if err := s.CreateMatch(ctx, next); err != nil {
		t.Fatal(err)
	}
	if next.ID != 11 {
		t.Errorf("next id = %d, want 11", next.ID)
	}
}

func TestDeleteIdleSessionsKeepsMatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	rec := record(1, "p")
	rec.CreatedAt = old
	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "old", PersonaID: "lion", PitchCandidate: "p", Record: rec}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitTurn(ctx, TurnCommit{SessionID: "new", PersonaID: "lion", PitchCandidate: "p", Record: record(1, "p")}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateMatch(ctx, &domain.MatchEntry{SessionID: "old", CreatedAt: old}); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteIdleSessions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 || deleted[0] != "old" {
		t.Fatalf("deleted = %v", deleted)
	}
	if got, _ := s.GetSession(ctx, "old"); got != nil {
		t.Error("old session still present")
	}
	if turns, _ := s.ListTurns(ctx, "old", "lion"); len(turns) != 0 {
		t.Error("old turns still present")
	}
	if m, _ := s.GetMatchBySession(ctx, "old"); m == nil {
		t.Error("match must survive session purge")
	}
	if got, _ := s.GetSession(ctx, "new"); got == nil {
		t.Error("recent session was purged")
	}
}
