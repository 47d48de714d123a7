package persona

import (
	"testing"

	"github.com/ashureev/pitch-tank/internal/domain"
)

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog([]string{" Lion", "owl", "lion", "", "TUSK"})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	got := c.IDs()
	want := []string{"lion", "owl", "tusk"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}

	if _, err := NewCatalog([]string{"lion", "shark"}); err == nil {
		t.Error("expected error for unknown persona")
	}
	if _, err := NewCatalog(nil); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestCatalogGet(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	if p, ok := c.Get("OWL"); !ok || p.Name != "Professor Owl" {
		t.Errorf("Get(OWL) = %v, %v", p.Name, ok)
	}
	if _, ok := c.Get("rocket"); ok {
		t.Error("rocket is not enabled by default")
	}
	if _, ok := Lookup("rocket"); !ok {
		t.Error("rocket should be a built-in")
	}
}

func TestBuiltinsAreComplete(t *testing.T) {
	t.Parallel()

	for id, p := range builtin {
		if p.ID != id {
			t.Errorf("%s: id mismatch %q", id, p.ID)
		}
		if p.Identity == "" || p.FollowUpInstruction == "" || p.ConcludingInstruction == "" {
			t.Errorf("%s: missing prompt text", id)
		}
		for _, e := range domain.Emotions {
			if p.MoodCriteria[e] == "" {
				t.Errorf("%s: no criteria for %s", id, e)
			}
		}
	}

	if !tusk.HasOpening() || lion.HasOpening() {
		t.Error("only tusk greets an empty first turn")
	}
}

func TestBuiltinIDsCoverCatalog(t *testing.T) {
	t.Parallel()

	ids := BuiltinIDs()
	if len(ids) != len(builtin) {
		t.Fatalf("BuiltinIDs has %d ids, builtin has %d", len(ids), len(builtin))
	}
	c, err := NewCatalog(ids)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.IDs(); len(got) != len(ids) || got[0] != "lion" {
		t.Errorf("catalog ids = %v", got)
	}
}
