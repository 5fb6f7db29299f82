// Package sqlite provides a durable SessionStore over a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	category    TEXT NOT NULL,
	state       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER,
	reason      TEXT NOT NULL DEFAULT '',
	fine_amount INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_subject_state ON sessions (subject_id, state);
CREATE INDEX IF NOT EXISTS idx_sessions_category_state ON sessions (category, state);
`

// openStates is the SQL IN-list of slot-occupying states.
var openStates = func() string {
	states := breaks.OpenStates()
	quoted := make([]string, len(states))
	for i, s := range states {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}()

// SessionStore implements breaks.SessionStore on a SQLite database.
// The pool is capped at one connection and every invariant-bearing
// operation runs in a transaction, so check-and-create and guarded
// transitions are serialized by the database itself.
type SessionStore struct {
	db *sql.DB
}

// Open opens (or creates) the session database at path and applies
// the schema.
func Open(path string) (*SessionStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes all writers; SQLite allows only
	// one writer at a time anyway, and this avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Create atomically checks the single-session and capacity invariants
// and inserts the session.
func (s *SessionStore) Create(ctx context.Context, sess *breaks.Session, capacity int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin create", err)
	}
	defer func() { _ = tx.Rollback() }()

	var openCount int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE subject_id = ? AND state IN ("+openStates+")",
		sess.SubjectID,
	).Scan(&openCount)
	if err != nil {
		return unavailable("check open session", err)
	}
	if openCount > 0 {
		return breaks.ErrDuplicateOpenSession
	}

	var activeCount int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE category = ? AND state IN ("+openStates+")",
		sess.Category,
	).Scan(&activeCount)
	if err != nil {
		return unavailable("check capacity", err)
	}
	if activeCount >= capacity {
		return fmt.Errorf("%w: %q is limited to %d concurrent breaks", breaks.ErrCapacityExceeded, sess.Category, capacity)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions (id, subject_id, category, state, started_at, ended_at, reason, fine_amount) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		sess.ID, sess.SubjectID, sess.Category, string(sess.State),
		toMillis(sess.StartedAt), nullableMillis(sess.EndedAt), sess.Reason, sess.FineAmount,
	)
	if err != nil {
		return unavailable("insert session", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit create", err)
	}
	return nil
}

// Transition applies a guarded state change inside a transaction.
func (s *SessionStore) Transition(ctx context.Context, id string, from []breaks.State, to breaks.State, mutate breaks.Mutation) (*breaks.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin transition", err)
	}
	defer func() { _ = tx.Rollback() }()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		"SELECT id, subject_id, category, state, started_at, ended_at, reason, fine_amount FROM sessions WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if sess.State == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: session %s is %s", breaks.ErrInvalidTransition, id, sess.State)
	}

	prev := sess.State
	if mutate != nil {
		mutate(sess)
	}
	sess.State = to

	// The WHERE state clause re-asserts the guard at write time.
	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET state = ?, ended_at = ?, reason = ?, fine_amount = ? WHERE id = ? AND state = ?",
		string(sess.State), nullableMillis(sess.EndedAt), sess.Reason, sess.FineAmount, id, string(prev),
	)
	if err != nil {
		return nil, unavailable("update session", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("rows affected", err)
	}
	if affected != 1 {
		return nil, fmt.Errorf("%w: session %s changed concurrently", breaks.ErrInvalidTransition, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit transition", err)
	}
	return sess, nil
}

// ActiveCount returns the number of open sessions in a category.
func (s *SessionStore) ActiveCount(ctx context.Context, category string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE category = ? AND state IN ("+openStates+")",
		category,
	).Scan(&count)
	if err != nil {
		return 0, unavailable("count active", err)
	}
	return count, nil
}

// FindOpenSession returns the subject's open session, if any.
func (s *SessionStore) FindOpenSession(ctx context.Context, subjectID string) (*breaks.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		"SELECT id, subject_id, category, state, started_at, ended_at, reason, fine_amount FROM sessions WHERE subject_id = ? AND state IN ("+openStates+")",
		subjectID))
}

// Get returns the session with the given id.
func (s *SessionStore) Get(ctx context.Context, id string) (*breaks.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		"SELECT id, subject_id, category, state, started_at, ended_at, reason, fine_amount FROM sessions WHERE id = ?", id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*breaks.Session, error) {
	var (
		sess      breaks.Session
		state     string
		startedAt int64
		endedAt   sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.SubjectID, &sess.Category, &state, &startedAt, &endedAt, &sess.Reason, &sess.FineAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, breaks.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("scan session", err)
	}

	sess.State = breaks.State(state)
	sess.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		sess.EndedAt = fromMillis(endedAt.Int64)
	}
	return &sess, nil
}

// unavailable wraps a backend failure so callers fail closed on
// breaks.ErrStoreUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", breaks.ErrStoreUnavailable, op, err)
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullableMillis(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return toMillis(value)
}

// Compile-time interface verification.
var _ breaks.SessionStore = (*SessionStore)(nil)
