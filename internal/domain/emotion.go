package domain

import "strings"

// Emotion is the closed set of moods a persona can express.
type Emotion string

const (
	Neutral   Emotion = "Neutral"
	Angry     Emotion = "Angry"
	Surprised Emotion = "Surprised"
	Happy     Emotion = "Happy"
	Cool      Emotion = "Cool"
)

// Emotions lists every emotion in display order.
var Emotions = []Emotion{Neutral, Angry, Surprised, Happy, Cool}

// ParseEmotion matches a label case-insensitively against the closed set.
func ParseEmotion(label string) (Emotion, bool) {
	label = strings.TrimSpace(label)
	for _, e := range Emotions {
		if strings.EqualFold(label, string(e)) {
			return e, true
		}
	}
	return Neutral, false
}

// Valid reports whether e is spelled exactly as a canonical emotion.
func (e Emotion) Valid() bool {
	for _, c := range Emotions {
		if e == c {
			return true
		}
	}
	return false
}
