package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io"
	audioFormat          = "audio/mpeg"
)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesizer voices persona replies through the ElevenLabs text-to-speech API.
type Synthesizer struct {
	client *resty.Client
}

// NewSynthesizer returns a Synthesizer. baseURL may be empty.
func NewSynthesizer(apiKey, baseURL string) *Synthesizer {
	if baseURL == "" {
		baseURL = defaultElevenLabsURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("xi-api-key", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &Synthesizer{client: client}
}

// Synthesize speaks text with the given voice and returns base64 mpeg audio.
func (s *Synthesizer) Synthesize(ctx context.Context, voiceID, text string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}
	if voiceID == "" {
		return nil, ErrNoVoice
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", audioFormat).
		SetBody(synthesisRequest{
			Text:          text,
			VoiceSettings: voiceSettings{Stability: 0.75, SimilarityBoost: 0.75},
		}).
		Post("/v1/text-to-speech/" + url.PathEscape(voiceID))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode(), body)
	}

	return &Audio{
		Content: base64.StdEncoding.EncodeToString(resp.Body()),
		Format:  audioFormat,
	}, nil
}
