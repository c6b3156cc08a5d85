package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	model "github.com/articulotor/backend/internal/model/session"
)

// ErrNotFound reports a session identifier with no matching row.
var ErrNotFound = errors.New("session not found")

// Busy-retry settings for lock contention on the session table.
const (
	maxBusyRetries = 3
	busyRetryDelay = 100 * time.Millisecond
)

// Store owns all reads and writes of session state, backed by a single
// SQLite table. Message and analysis histories are stored as JSON blobs
// in their columns; sessions are always read and written as whole rows.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the session database and initializes the
// schema. WAL mode keeps readers off the writer's lock, and
// _txlock=immediate makes write transactions take the write lock at
// BEGIN rather than at first write.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids needless
	// SQLITE_BUSY churn between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		mode        TEXT NOT NULL,
		persona     TEXT,
		created_at  TEXT NOT NULL,
		ended_at    TEXT,
		status      TEXT NOT NULL DEFAULT 'active',
		messages    TEXT NOT NULL DEFAULT '[]',
		analyses    TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Create allocates a fresh session in the active state and returns its ID.
func (s *Store) Create(ctx context.Context, scenarioID string, mode model.Mode, personaKey string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, scenario_id, mode, persona, created_at, status, messages, analyses)
		VALUES (?, ?, ?, ?, ?, 'active', '[]', '[]')`,
		id, scenarioID, string(mode), personaKey, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[store] session created: %s, scenario: %s, mode: %s", id, scenarioID, mode)
	return id, nil
}

// Get returns a fully materialized session snapshot.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario_id, mode, persona, created_at, ended_at, status, messages, analyses
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return sess, nil
}

// ListAll returns every session, newest first.
func (s *Store) ListAll(ctx context.Context) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario_id, mode, persona, created_at, ended_at, status, messages, analyses
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CountActive returns the number of sessions still accepting turns.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// AppendTurn atomically appends a user message and, when analysis is
// non-nil, its analysis record with the next turn number. Returns false
// without writing anything when the session is missing or no longer
// active at commit time.
func (s *Store) AppendTurn(ctx context.Context, id, userText string, analysis *model.Analysis) (bool, error) {
	return s.appendMessage(ctx, id, model.RoleUser, userText, analysis)
}

// AppendReply appends an assistant message under the same active-only
// guard. Called only after a successful AppendTurn produced a reply.
func (s *Store) AppendReply(ctx context.Context, id, assistantText string) (bool, error) {
	return s.appendMessage(ctx, id, model.RoleAssistant, assistantText, nil)
}

func (s *Store) appendMessage(ctx context.Context, id, role, content string, analysis *model.Analysis) (bool, error) {
	var committed bool
	err := s.withBusyRetry(ctx, func() error {
		ok, err := s.appendMessageTx(ctx, id, role, content, analysis)
		committed = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to append %s message to session %s: %w", role, id, err)
	}
	if committed {
		log.Printf("[store] message appended to session %s, role: %s", id, role)
	} else {
		log.Printf("[store] cannot append message - session %s not active or not found", id)
	}
	return committed, nil
}

// appendMessageTx runs the turn-commit protocol as one transaction: an
// active-only read under the write lock, the in-memory append, and a
// conditional write that is checked for effect. The active-only filter
// on both statements is what closes the race with a concurrent End.
func (s *Store) appendMessageTx(ctx context.Context, id, role, content string, analysis *model.Analysis) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var rawMessages, rawAnalyses []byte
	err = tx.QueryRowContext(ctx,
		`SELECT messages, analyses FROM sessions WHERE id = ? AND status = 'active'`,
		id).Scan(&rawMessages, &rawAnalyses)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	messages := decodeMessages(id, rawMessages)
	analyses := decodeAnalyses(id, rawAnalyses)

	messages = append(messages, model.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if analysis != nil {
		record := *analysis
		record.Normalize()
		record.TurnNumber = len(analyses) + 1
		analyses = append(analyses, record)
	}

	encodedMessages, err := json.Marshal(messages)
	if err != nil {
		return false, err
	}
	encodedAnalyses, err := json.Marshal(analyses)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET messages = ?, analyses = ? WHERE id = ? AND status = 'active'`,
		encodedMessages, encodedAnalyses, id)
	if err != nil {
		return false, err
	}

	// A zero row count means the session ended between read and write;
	// commit alone must not be taken as success.
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	return true, tx.Commit()
}

// End transitions a session from active to ended, setting ended_at.
// Idempotent: only the first caller observes true, later calls (and
// calls against unknown IDs) return false without error.
func (s *Store) End(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var ended bool
	err := s.withBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET status = 'ended', ended_at = ? WHERE id = ? AND status = 'active'`,
			now, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		ended = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to end session %s: %w", id, err)
	}

	if ended {
		log.Printf("[store] session ended: %s", id)
	} else {
		log.Printf("[store] session %s was already ended or not found", id)
	}
	return ended, nil
}

// withBusyRetry retries an operation on lock contention with a growing
// delay before surfacing the error. Not-found and invalid-state results
// are ordinary returns and never pass through here as errors.
func (s *Store) withBusyRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxBusyRetries; attempt++ {
		if err = op(); err == nil || !isBusy(err) {
			return err
		}

		log.Printf("[store] database locked, retry %d/%d", attempt, maxBusyRetries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busyRetryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("database locked after %d retries: %w", maxBusyRetries, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		sess        model.Session
		mode        string
		persona     sql.NullString
		createdAt   string
		endedAt     sql.NullString
		status      string
		rawMessages []byte
		rawAnalyses []byte
	)

	err := row.Scan(&sess.ID, &sess.ScenarioID, &mode, &persona, &createdAt,
		&endedAt, &status, &rawMessages, &rawAnalyses)
	if err != nil {
		return nil, err
	}

	sess.Mode = model.Mode(mode)
	sess.Persona = persona.String
	sess.Status = model.Status(status)

	sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for session %s: %w", sess.ID, err)
	}
	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid ended_at for session %s: %w", sess.ID, err)
		}
		sess.EndedAt = &t
	}

	sess.Messages = decodeMessages(sess.ID, rawMessages)
	sess.Analyses = decodeAnalyses(sess.ID, rawAnalyses)
	return &sess, nil
}

// decodeMessages degrades a malformed blob to an empty history instead of
// failing the whole read; the corruption is logged for investigation.
func decodeMessages(sessionID string, raw []byte) []model.Message {
	messages := []model.Message{}
	if len(raw) == 0 {
		return messages
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		log.Printf("[store] corrupt messages blob for session %s (%s): %v",
			sessionID, truncateForLog(raw), err)
		return []model.Message{}
	}
	return messages
}

func decodeAnalyses(sessionID string, raw []byte) []model.Analysis {
	analyses := []model.Analysis{}
	if len(raw) == 0 {
		return analyses
	}
	if err := json.Unmarshal(raw, &analyses); err != nil {
		log.Printf("[store] corrupt analyses blob for session %s (%s): %v",
			sessionID, truncateForLog(raw), err)
		return []model.Analysis{}
	}
	return analyses
}

func truncateForLog(raw []byte) string {
	const limit = 100
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
