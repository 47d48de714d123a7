package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/pitch-tank/internal/domain"
)

// SummarySystem frames the synthesis call.
const SummarySystem = "You are a professional business analyst synthesizing venture capitalist feedback."

// Summary renders the synthesis prompt over each persona's final stance.
func (b *Builder) Summary(pitch string, responses []domain.PersonaResponse) (Prompt, error) {
	if strings.TrimSpace(pitch) == "" {
		return Prompt{}, ErrMissingPitch
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this business pitch and the feedback from %d venture capitalists:\n\n", len(responses))
	sb.WriteString("Business Pitch:\n")
	sb.WriteString(strings.TrimSpace(pitch))
	sb.WriteString("\n\nVenture Capitalist Feedback:\n")
	for i, r := range responses {
		fmt.Fprintf(&sb, "%d. %s:\nResponse: %s\nMood: %s\n\n", i+1, r.Name, strings.TrimSpace(r.Response), r.Mood)
	}
	sb.WriteString("Please provide a concise summary (max 150 words) that:\n")
	sb.WriteString("1. Evaluates the overall reception of the pitch\n")
	sb.WriteString("2. Identifies key strengths and concerns raised\n")
	sb.WriteString("3. Provides a balanced conclusion based on all the investors' perspectives\n")

	return Prompt{
		System:      SummarySystem,
		User:        sb.String(),
		MaxTokens:   b.settings.SummaryMaxTokens,
		Temperature: b.settings.SummaryTemperature,
	}, nil
}
