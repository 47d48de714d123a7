// Package mood splits generated persona text into a message and an emotion.
package mood

import (
	"strings"

	"github.com/ashureev/pitch-tank/internal/domain"
)

// Separator divides the spoken message from the trailing mood label.
const Separator = "---"

// labelTrim is stripped from around a label before matching, so "**Happy**." still counts.
const labelTrim = " \t\r\n*_`.!\"'"

// Parse returns the message and the mood encoded in raw. It never fails:
// anything that is not a recognized label yields domain.Neutral.
func Parse(raw string) (string, domain.Emotion) {
	i := strings.LastIndex(raw, Separator)
	if i < 0 {
		return strings.TrimSpace(raw), domain.Neutral
	}

	message := strings.TrimSpace(raw[:i])
	label := strings.Trim(raw[i+len(Separator):], labelTrim)
	mood, ok := domain.ParseEmotion(label)
	if !ok {
		return message, domain.Neutral
	}
	return message, mood
}

// Format renders a message and mood in the canonical separated form.
func Format(message string, mood domain.Emotion) string {
	if !mood.Valid() {
		mood = domain.Neutral
	}
	return strings.TrimSpace(message) + " " + Separator + " " + string(mood)
}
