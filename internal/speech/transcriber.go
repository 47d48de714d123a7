package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns recorded speech into text with the OpenAI audio API.
type Transcriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber returns a Transcriber. baseURL may be empty.
func NewTranscriber(apiKey, model, baseURL string) *Transcriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	client := openai.NewClient(opts...)
	return &Transcriber{client: &client, model: model}
}

// Transcribe decodes base64 (or data URL) audio and returns its transcript.
func (t *Transcriber) Transcribe(ctx context.Context, encoded string) (string, error) {
	data, err := decodeAudio(encoded)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "audio.webm", "audio/webm"),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoTranscript
	}
	return text, nil
}
