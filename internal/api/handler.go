// Package api provides HTTP handlers for the pitch API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/ashureev/pitch-tank/internal/feed"
	"github.com/ashureev/pitch-tank/internal/pitch"
	"github.com/ashureev/pitch-tank/internal/speech"
	"github.com/ashureev/pitch-tank/internal/store"
)

const (
	defaultMaxBodyBytes = 16 * 1024
	maxAudioBytes       = 10 << 20
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Transcriber turns base64 audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio string) (string, error)
}

// Synthesizer voices text with a persona's voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (*speech.Audio, error)
}

// Options holds the optional collaborators of a Handler.
type Options struct {
	Hub            *feed.Hub
	Transcriber    Transcriber
	Synthesizer    Synthesizer
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// Handler serves the pitch API.
type Handler struct {
	svc         *pitch.Service
	repo        store.Repository
	hub         *feed.Hub
	transcriber Transcriber
	synthesizer Synthesizer
	maxBody     int64
	origins     []string
}

// NewHandler creates a Handler. Speech routes answer 503 when their
// collaborator is nil.
func NewHandler(svc *pitch.Service, repo store.Repository, opts Options) *Handler {
	h := &Handler{
		svc:         svc,
		repo:        repo,
		hub:         opts.Hub,
		transcriber: opts.Transcriber,
		synthesizer: opts.Synthesizer,
		maxBody:     opts.MaxBodyBytes,
		origins:     originHosts(opts.AllowedOrigins),
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBodyBytes
	}
	if h.hub == nil {
		h.hub = feed.NewHub()
	}
	return h
}

// originHosts turns CORS origins into the host patterns websocket.Accept matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type errorBody struct {
	Error    string     `json:"error"`
	Kind     pitch.Kind `json:"kind"`
	Personas []string   `json:"personas,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) (int, pitch.Kind) {
	kind := pitch.KindOf(err)
	switch kind {
	case pitch.KindValidation:
		return http.StatusBadRequest, kind
	case pitch.KindClosed, pitch.KindIncomplete, pitch.KindConflict:
		return http.StatusConflict, kind
	case pitch.KindNotFound:
		return http.StatusNotFound, kind
	case pitch.KindBackend:
		var backendErr *pitch.BackendError
		if errors.As(err, &backendErr) && backendErr.Timeout() {
			return http.StatusGatewayTimeout, kind
		}
		return http.StatusBadGateway, kind
	case pitch.KindUnavailable:
		return http.StatusServiceUnavailable, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// writeError renders err as {"error", "kind"} with the status of its kind.
// Internal errors are logged and never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var incomplete *pitch.IncompleteConversationError
	if errors.As(err, &incomplete) {
		body.Personas = incomplete.Personas
	}

	switch {
	case status >= http.StatusInternalServerError && kind == pitch.KindInternal:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	case status >= http.StatusInternalServerError:
		slog.WarnContext(r.Context(), "Upstream failure", "path", r.URL.Path, "kind", kind, "error", err)
	}
	JSON(w, status, body)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeBodyError(w, err)
		return false
	}
	return true
}

// readBody reads a size-limited raw body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return nil, false
	}
	return data, true
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		JSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Kind:  pitch.KindValidation,
		})
		return
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body", Kind: pitch.KindValidation})
}

func validSessionID(w http.ResponseWriter, id string) bool {
	if sessionIDPattern.MatchString(id) {
		return true
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: "invalid session id", Kind: pitch.KindValidation})
	return false
}
