package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/pitch-tank/internal/pitch"
	"github.com/ashureev/pitch-tank/internal/speech"
	"github.com/go-chi/chi/v5"
)

func speechUnavailable(w http.ResponseWriter) {
	JSON(w, http.StatusServiceUnavailable, errorBody{Error: "speech is disabled", Kind: pitch.KindUnavailable})
}

type speechToTextRequest struct {
	Audio string `json:"audio"`
}

// SpeechToText transcribes base64 audio.
func (h *Handler) SpeechToText(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		speechUnavailable(w)
		return
	}
	var req speechToTextRequest
	if !decodeJSON(w, r, maxAudioBytes, &req) {
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), req.Audio)
	switch {
	case errors.Is(err, speech.ErrNoAudio):
		JSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: pitch.KindValidation})
	case errors.Is(err, speech.ErrNoTranscript):
		JSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: pitch.KindValidation})
	case err != nil:
		writeError(w, r, &pitch.BackendError{Op: "transcribe", Err: err})
	default:
		JSON(w, http.StatusOK, map[string]string{"text": text})
	}
}

type textToSpeechRequest struct {
	Text string `json:"text"`
}

// TextToSpeech voices text with the persona's voice.
func (h *Handler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	if h.synthesizer == nil {
		speechUnavailable(w)
		return
	}
	p, ok := h.svc.Catalog().Get(chi.URLParam(r, "personaID"))
	if !ok {
		writeError(w, r, pitch.ErrUnknownPersona)
		return
	}
	var req textToSpeechRequest
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	audio, err := h.synthesizer.Synthesize(r.Context(), p.VoiceID, req.Text)
	switch {
	case errors.Is(err, speech.ErrNoText), errors.Is(err, speech.ErrNoVoice):
		JSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: pitch.KindValidation})
	case err != nil:
		writeError(w, r, &pitch.BackendError{Op: "synthesize", Err: err})
	default:
		JSON(w, http.StatusOK, audio)
	}
}
