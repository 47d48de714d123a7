package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	matchMu sync.Mutex // serializes match id assignment
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		original_pitch TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		user_input TEXT NOT NULL,
		persona_response TEXT NOT NULL,
		mood TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, persona_id, idx)
	);

	CREATE TABLE IF NOT EXISTS summaries (
		session_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		original_pitch TEXT NOT NULL,
		responses_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		session_id TEXT PRIMARY KEY,
		data_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		match_id INTEGER PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		company_name TEXT NOT NULL,
		company_email TEXT NOT NULL,
		feedback_json TEXT NOT NULL,
		match_score INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	INSERT INTO counters (name, value) VALUES ('match', 0) ON CONFLICT(name) DO NOTHING;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// withBusyRetry retries fn with exponential backoff while SQLite reports lock contention.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < busyRetries; i++ {
		if err = fn(); err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == busyRetries-1 {
			break
		}
		delay := busyBaseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, busyRetries, err)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a session row unless it already exists.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.PitchSession) error {
	query := `
	INSERT INTO sessions (session_id, owner_id, original_pitch, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO NOTHING`

	return withBusyRetry(ctx, "create session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.OwnerID, session.OriginalPitch,
			session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.PitchSession, error) {
	query := `
		SELECT session_id, owner_id, original_pitch, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	var session domain.PitchSession
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.OwnerID, &session.OriginalPitch, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)
	return &session, nil
}

// ListTurns returns one persona's turns in index order.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID, personaID string) ([]domain.TurnRecord, error) {
	query := `
		SELECT persona_id, idx, user_input, persona_response, mood, created_at
		FROM turns WHERE session_id = ? AND persona_id = ? ORDER BY idx`

	byPersona, err := s.queryTurns(ctx, query, sessionID, personaID)
	if err != nil {
		return nil, err
	}
	return byPersona[personaID], nil
}

// ListSessionTurns returns all turns of a session grouped by persona.
func (s *SQLiteStore) ListSessionTurns(ctx context.Context, sessionID string) (map[string][]domain.TurnRecord, error) {
	query := `
		SELECT persona_id, idx, user_input, persona_response, mood, created_at
		FROM turns WHERE session_id = ? ORDER BY persona_id, idx`

	return s.queryTurns(ctx, query, sessionID)
}

func (s *SQLiteStore) queryTurns(ctx context.Context, query string, args ...any) (map[string][]domain.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	out := make(map[string][]domain.TurnRecord)
	for rows.Next() {
		var personaID, mood string
		var createdAt int64
		var rec domain.TurnRecord
		if err := rows.Scan(&personaID, &rec.Index, &rec.UserInput, &rec.PersonaResponse, &mood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		rec.Mood = domain.Emotion(mood)
		rec.CreatedAt = time.UnixMilli(createdAt)
		out[personaID] = append(out[personaID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return out, nil
}

// CommitTurn appends a turn record and applies first-writer-wins pitch capture.
func (s *SQLiteStore) CommitTurn(ctx context.Context, c TurnCommit) (string, error) {
	var pitch string
	err := withBusyRetry(ctx, "commit turn", func() error {
		var err error
		pitch, err = s.commitTurnOnce(ctx, c)
		return err
	})
	return pitch, err
}

func (s *SQLiteStore) commitTurnOnce(ctx context.Context, c TurnCommit) (pitch string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin turn tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back turn tx", "error", rbErr)
			}
		}
	}()

	now := c.Record.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, owner_id, original_pitch, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		c.SessionID, c.OwnerID, now.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("ensure session: %w", err)
	}

	if strings.TrimSpace(c.PitchCandidate) != "" {
		if _, err = tx.ExecContext(ctx,
			`UPDATE sessions SET original_pitch = ? WHERE session_id = ? AND original_pitch = ''`,
			strings.TrimSpace(c.PitchCandidate), c.SessionID,
		); err != nil {
			return "", fmt.Errorf("capture pitch: %w", err)
		}
	}

	var count int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = ? AND persona_id = ?`,
		c.SessionID, c.PersonaID,
	).Scan(&count); err != nil {
		return "", fmt.Errorf("count turns: %w", err)
	}
	if c.Record.Index != count+1 {
		err = fmt.Errorf("%w: have %d turns, got index %d", ErrTurnConflict, count, c.Record.Index)
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, persona_id, idx, user_input, persona_response, mood, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.PersonaID, c.Record.Index, c.Record.UserInput,
		c.Record.PersonaResponse, string(c.Record.Mood), now.UnixMilli(),
	); err != nil {
		if shared.IsSQLiteUniqueError(err) {
			err = fmt.Errorf("%w: index %d: %v", ErrTurnConflict, c.Record.Index, err)
			return "", err
		}
		return "", fmt.Errorf("insert turn: %w", err)
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ? RETURNING original_pitch`,
		now.UnixMilli(), c.SessionID,
	).Scan(&pitch); err != nil {
		return "", fmt.Errorf("touch session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit turn tx: %w", err)
	}
	return pitch, nil
}

// GetSummary retrieves the stored summary of a session.
func (s *SQLiteStore) GetSummary(ctx context.Context, sessionID string) (*domain.Summary, error) {
	query := `
		SELECT session_id, summary, original_pitch, responses_json, created_at
		FROM summaries WHERE session_id = ?`

	var summary domain.Summary
	var responsesJSON string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&summary.SessionID, &summary.Text, &summary.OriginalPitch, &responsesJSON, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary row: %w", err)
	}
	if err := json.Unmarshal([]byte(responsesJSON), &summary.PersonaResponses); err != nil {
		return nil, fmt.Errorf("unmarshal summary responses: %w", err)
	}
	summary.CreatedAt = time.UnixMilli(createdAt)
	return &summary, nil
}

// SaveSummary creates or replaces the summary of a session.
func (s *SQLiteStore) SaveSummary(ctx context.Context, summary *domain.Summary) error {
	responsesJSON, err := json.Marshal(summary.PersonaResponses)
	if err != nil {
		return fmt.Errorf("marshal summary responses: %w", err)
	}

	query := `
	INSERT INTO summaries (session_id, summary, original_pitch, responses_json, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		summary = excluded.summary,
		original_pitch = excluded.original_pitch,
		responses_json = excluded.responses_json,
		created_at = excluded.created_at`

	return withBusyRetry(ctx, "save summary", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			summary.SessionID, summary.Text, summary.OriginalPitch,
			string(responsesJSON), summary.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		return nil
	})
}

// GetPreferences retrieves the preferences blob of a session.
func (s *SQLiteStore) GetPreferences(ctx context.Context, sessionID string) (*domain.Preferences, error) {
	var data string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data_json, updated_at FROM preferences WHERE session_id = ?`, sessionID,
	).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan preferences row: %w", err)
	}
	return &domain.Preferences{
		SessionID: sessionID,
		Data:      json.RawMessage(data),
		UpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

// SavePreferences creates or replaces the preferences blob of a session.
func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs *domain.Preferences) error {
	query := `
	INSERT INTO preferences (session_id, data_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		data_json = excluded.data_json,
		updated_at = excluded.updated_at`

	return withBusyRetry(ctx, "save preferences", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			prefs.SessionID, string(prefs.Data), prefs.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert preferences: %w", err)
		}
		return nil
	})
}

// CreateMatch assigns entry.ID from the match counter and stores the entry.
// Ids are monotonic and never reused, even after entries are removed.
func (s *SQLiteStore) CreateMatch(ctx context.Context, entry *domain.MatchEntry) error {
	feedbackJSON, err := json.Marshal(entry.Feedback)
	if err != nil {
		return fmt.Errorf("marshal match feedback: %w", err)
	}

	s.matchMu.Lock()
	defer s.matchMu.Unlock()

	return withBusyRetry(ctx, "create match", func() error {
		id, err := s.createMatchOnce(ctx, entry, string(feedbackJSON))
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
}

func (s *SQLiteStore) createMatchOnce(ctx context.Context, entry *domain.MatchEntry, feedbackJSON string) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin match tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back match tx", "error", rbErr)
			}
		}
	}()

	if err = tx.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'match' RETURNING value`,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("next match id: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO matches (match_id, session_id, company_name, company_email, feedback_json, match_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.SessionID, entry.CompanyName, entry.CompanyEmail,
		feedbackJSON, entry.MatchScore, entry.CreatedAt.UnixMilli(),
	); err != nil {
		if shared.IsSQLiteUniqueError(err) {
			err = fmt.Errorf("%w: %s", ErrMatchExists, entry.SessionID)
			return 0, err
		}
		return 0, fmt.Errorf("insert match: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit match tx: %w", err)
	}
	return id, nil
}

const matchColumns = `match_id, session_id, company_name, company_email, feedback_json, match_score, created_at`

func scanMatch(scan func(dest ...any) error) (*domain.MatchEntry, error) {
	var entry domain.MatchEntry
	var feedbackJSON string
	var createdAt int64
	if err := scan(
		&entry.ID, &entry.SessionID, &entry.CompanyName, &entry.CompanyEmail,
		&feedbackJSON, &entry.MatchScore, &createdAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(feedbackJSON), &entry.Feedback); err != nil {
		return nil, fmt.Errorf("unmarshal match feedback: %w", err)
	}
	entry.CreatedAt = time.UnixMilli(createdAt)
	return &entry, nil
}

// GetMatchBySession retrieves the match entry of a session.
func (s *SQLiteStore) GetMatchBySession(ctx context.Context, sessionID string) (*domain.MatchEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE session_id = ?`, sessionID)
	entry, err := scanMatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan match row: %w", err)
	}
	return entry, nil
}

// ListMatches returns every match ordered by id.
func (s *SQLiteStore) ListMatches(ctx context.Context) ([]domain.MatchEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close match rows", "error", closeErr)
		}
	}()

	matches := []domain.MatchEntry{}
	for rows.Next() {
		entry, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		matches = append(matches, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// DeleteIdleSessions removes sessions idle for longer than ttl.
func (s *SQLiteStore) DeleteIdleSessions(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()

	var deleted []string
	err := withBusyRetry(ctx, "delete idle sessions", func() error {
		var err error
		deleted, err = s.deleteIdleOnce(ctx, threshold)
		return err
	})
	return deleted, err
}

func (s *SQLiteStore) deleteIdleOnce(ctx context.Context, threshold int64) (ids []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back purge tx", "error", rbErr)
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT session_id FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan idle session: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate idle sessions: %w", err)
	}
	if err = rows.Close(); err != nil {
		return nil, fmt.Errorf("close idle session rows: %w", err)
	}

	for _, id := range ids {
		for _, table := range []string{"turns", "summaries", "preferences", "sessions"} {
			if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, id); err != nil {
				return nil, fmt.Errorf("delete %s for %s: %w", table, id, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purge tx: %w", err)
	}
	return ids, nil
}
