// Package persona defines the investor characters that evaluate a pitch.
package persona

import (
	"fmt"
	"strings"

	"github.com/ashureev/pitch-tank/internal/domain"
)

// Persona is the static definition of one evaluator.
type Persona struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`

	// Identity is the opening character description placed at the top of every prompt.
	Identity string   `json:"-"`
	Traits   []string `json:"traits"`

	// MoodHeading introduces MoodCriteria in the prompt.
	MoodHeading  string                    `json:"-"`
	MoodCriteria map[domain.Emotion]string `json:"-"`

	FollowUpInstruction   string `json:"-"`
	ConcludingInstruction string `json:"-"`
	// Reminder is appended after the turn instruction, if set.
	Reminder string `json:"-"`

	// OpeningLine is returned for an empty first turn without touching state.
	OpeningLine string `json:"opening_line,omitempty"`
	VoiceID     string `json:"-"`
}

// HasOpening reports whether the persona greets an empty first turn.
func (p Persona) HasOpening() bool {
	return strings.TrimSpace(p.OpeningLine) != ""
}

// Catalog is the ordered set of personas enabled for a deployment.
type Catalog struct {
	order []Persona
	byID  map[string]Persona
}

// NewCatalog builds a catalog from persona ids, keeping their order.
func NewCatalog(ids []string) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Persona, len(ids))}
	for _, raw := range ids {
		id := normalizeID(raw)
		if id == "" {
			continue
		}
		p, ok := builtin[id]
		if !ok {
			return nil, fmt.Errorf("unknown persona %q", raw)
		}
		if _, dup := c.byID[id]; dup {
			continue
		}
		c.order = append(c.order, p)
		c.byID[id] = p
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("at least one persona must be enabled")
	}
	return c, nil
}

// DefaultCatalog is the three-investor panel.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultIDs)
	if err != nil {
		panic(err)
	}
	return c
}

// Get looks up an enabled persona, ignoring case.
func (c *Catalog) Get(id string) (Persona, bool) {
	p, ok := c.byID[normalizeID(id)]
	return p, ok
}

// All returns the enabled personas in panel order.
func (c *Catalog) All() []Persona {
	out := make([]Persona, len(c.order))
	copy(out, c.order)
	return out
}

// IDs returns the enabled persona ids in panel order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.order))
	for i, p := range c.order {
		ids[i] = p.ID
	}
	return ids
}

// Lookup finds any built-in persona, enabled or not.
func Lookup(id string) (Persona, bool) {
	p, ok := builtin[normalizeID(id)]
	return p, ok
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
