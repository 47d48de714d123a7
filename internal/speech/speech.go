// Package speech converts entrepreneur audio to text and persona replies to audio.
package speech

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAudio is returned when a request carries no audio payload.
	ErrNoAudio = errors.New("audio data is required")
	// ErrNoText is returned when synthesis is asked to speak nothing.
	ErrNoText = errors.New("text is required")
	// ErrNoTranscript is returned when the audio produced no words.
	ErrNoTranscript = errors.New("could not transcribe audio")
	// ErrNoVoice is returned for personas without a configured voice.
	ErrNoVoice = errors.New("persona has no voice")
)

// Audio is base64 encoded audio with its MIME type.
type Audio struct {
	Content string `json:"audioContent"`
	Format  string `json:"format"`
}

// decodeAudio accepts raw base64 or a data URL and returns the audio bytes.
func decodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, "base64,"); i >= 0 {
		encoded = encoded[i+len("base64,"):]
	}
	if encoded == "" {
		return nil, ErrNoAudio
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	return data, nil
}
