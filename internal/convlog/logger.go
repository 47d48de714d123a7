// Package convlog writes pitch conversations as newline-delimited JSON.
package convlog

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/pitch-tank/internal/config"
	"github.com/oklog/ulid/v2"
)

// Event types written by the pitch service.
const (
	EventTurn    = "persona_turn"
	EventOpening = "persona_opening"
	EventSummary = "session_summary"
	EventMatch   = "session_match"
)

// Event is one line in a conversation log.
type Event struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	OwnerID    string         `json:"owner_id,omitempty"`
	SessionID  string         `json:"session_id"`
	PersonaID  string         `json:"persona_id,omitempty"`
	EventType  string         `json:"event_type"`
	Turn       int            `json:"turn,omitempty"`
	Input      string         `json:"input,omitempty"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Mood       string         `json:"mood,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events.
type Logger interface {
	Log(Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(Event) {}

// Close implements Logger.
func (Nop) Close() error { return nil }

// FileLogger appends events to one file per session, off the request path.
type FileLogger struct {
	cfg    config.ConversationLogConfig
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool

	entropy *ulid.MonotonicEntropy
	idMu    sync.Mutex
}

// New returns a Nop logger when logging is disabled.
func New(cfg config.ConversationLogConfig, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewFileLogger(cfg, logger)
}

// NewFileLogger creates the log directory and starts the writer goroutine.
func NewFileLogger(cfg config.ConversationLogConfig, logger *slog.Logger) (*FileLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &FileLogger{
		cfg:     cfg,
		logger:  logger,
		queue:   make(chan Event, cfg.QueueSize),
		done:    make(chan struct{}),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event. Events are dropped with a warning when the queue is full.
func (l *FileLogger) Log(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.ID == "" {
		ev.ID = l.newID(ev.Timestamp)
	}
	if ev.Content == "" && ev.ContentRaw != "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}

	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"session_id", ev.SessionID, "event_type", ev.EventType)
	}
}

// Close drains pending events and stops the writer.
func (l *FileLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *FileLogger) newID(ts time.Time) string {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), l.entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

func (l *FileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		line, err := json.Marshal(ev)
		if err != nil {
			l.logger.Warn("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := appendLine(filepath.Join(l.cfg.Dir, safeName(ev.SessionID)+".ndjson"), line); err != nil {
			l.logger.Warn("Failed to write conversation log", "session_id", ev.SessionID, "error", err)
		}
		if l.cfg.GlobalEnabled {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.logger.Warn("Failed to write global conversation log", "error", err)
			}
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var spacePattern = regexp.MustCompile(`[ \t]+`)

// cleanForReadability normalizes line endings and collapses runs of blanks.
func cleanForReadability(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
