package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/invopop/jsonschema"
)

// MatchSystem frames the scoring call.
const MatchSystem = "You are an investment analyst scoring how well a startup fits an investor panel. Reply with JSON only."

// ScoreCard is the reply shape requested from the scoring call.
type ScoreCard struct {
	Personas          map[string]PersonaScore `json:"personas" jsonschema:"required,description=Keyed by persona id"`
	OverallMatchScore int                     `json:"overall_match_score" jsonschema:"required,minimum=0,maximum=100"`
}

// PersonaScore is one persona's entry in a ScoreCard.
type PersonaScore struct {
	Score     int      `json:"score" jsonschema:"required,minimum=0,maximum=100"`
	Positives []string `json:"positives" jsonschema:"required,maxItems=3"`
	Concerns  []string `json:"concerns" jsonschema:"required,maxItems=3"`
}

var (
	schemaOnce sync.Once
	schemaText string
)

// ScoreCardSchema returns the JSON Schema of ScoreCard.
func ScoreCardSchema() string {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		b, err := json.MarshalIndent(reflector.Reflect(&ScoreCard{}), "", "  ")
		if err != nil {
			panic(fmt.Sprintf("marshal score card schema: %v", err))
		}
		schemaText = string(b)
	})
	return schemaText
}

// MatchInput is everything the scoring call sees.
type MatchInput struct {
	CompanyName string
	Pitch       string
	Preferences json.RawMessage
	Responses   []domain.PersonaResponse
}

// Match renders the scoring prompt.
func (b *Builder) Match(in MatchInput) (Prompt, error) {
	if strings.TrimSpace(in.Pitch) == "" {
		return Prompt{}, ErrMissingPitch
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n\n", strings.TrimSpace(in.CompanyName))
	sb.WriteString("Business Pitch:\n")
	sb.WriteString(strings.TrimSpace(in.Pitch))
	sb.WriteString("\n\n")

	if len(in.Preferences) > 0 {
		sb.WriteString("Investor preferences (JSON):\n")
		sb.Write(in.Preferences)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Final investor stances:\n")
	for _, r := range in.Responses {
		fmt.Fprintf(&sb, "- %s (id %q, mood %s): %s\n", r.Name, r.PersonaID, r.Mood, strings.TrimSpace(r.Response))
	}

	sb.WriteString("\nScore each investor's interest from 0 to 100, list up to three positives and three concerns per investor, ")
	sb.WriteString("and give an overall match score from 0 to 100.\n")
	sb.WriteString("Return your answer STRICTLY as JSON matching this schema:\n")
	sb.WriteString(ScoreCardSchema())
	sb.WriteByte('\n')

	return Prompt{
		System:      MatchSystem,
		User:        sb.String(),
		MaxTokens:   b.settings.MatchMaxTokens,
		Temperature: b.settings.MatchTemperature,
	}, nil
}
