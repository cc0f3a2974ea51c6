// Package postgres provides a Postgres-backed session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LaazAlae/alaeautomates-backend/internal/clock/system"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for session rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SessionStore persists sessions and classified statement rows in Postgres.
type SessionStore struct {
	pool       dbPool
	clock      statements.Clock
	table      string
	stmtsTable string
}

// NewSessionStore creates a Postgres-backed SessionStore using the provided
// config. A nil clock falls back to the system clock.
func NewSessionStore(ctx context.Context, cfg Config, clock statements.Clock) (*SessionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newWithPool(pool, cfg.Table, clock)
}

// NewSessionStoreWithPool constructs a store from an existing pool (primarily
// for testing). A nil clock falls back to the system clock.
func NewSessionStoreWithPool(pool dbPool, table string, clock statements.Clock) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newWithPool(pool, table, clock)
}

func newWithPool(pool dbPool, table string, clock statements.Clock) (*SessionStore, error) {
	if table == "" {
		table = "sessions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clock == nil {
		clock = system.New()
	}
	return &SessionStore{
		pool:       pool,
		clock:      clock,
		table:      table,
		stmtsTable: table + "_statements",
	}, nil
}

// Close releases the underlying pool resources.
func (s *SessionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateSession inserts a new session row.
func (s *SessionStore) CreateSession(ctx context.Context, session statements.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, status, submitted_at, payload_hash,
	processed_statements, total_statements,
	requires_questions, questions_count
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)
	_, err := s.pool.Exec(
		ctx,
		query,
		session.ID,
		string(session.Status),
		session.Submitted,
		session.PayloadHash,
		session.Progress.Processed,
		session.Progress.Total,
		session.RequiresQuestions,
		session.QuestionsCount,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionStatus transitions a session row and stamps start/finish times.
func (s *SessionStore) UpdateSessionStatus(
	ctx context.Context,
	sessionID string,
	status statements.SessionStatus,
	errText string,
) error {
	query := fmt.Sprintf(`
UPDATE %s SET
	status = $1,
	error_text = $2,
	started_at = CASE WHEN $1 = 'processing' THEN COALESCE(started_at, $3) ELSE started_at END,
	finished_at = CASE WHEN $1 IN ('completed', 'error') THEN $3 ELSE finished_at END
WHERE id = $4`, s.table)
	tag, err := s.pool.Exec(ctx, query, string(status), errText, s.clock.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statements.ErrNotFound
	}
	return nil
}

// UpdateSessionProgress records classification progress counters.
func (s *SessionStore) UpdateSessionProgress(
	ctx context.Context,
	sessionID string,
	progress statements.Progress,
) error {
	query := fmt.Sprintf(
		`UPDATE %s SET processed_statements = $1, total_statements = $2 WHERE id = $3`,
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, progress.Processed, progress.Total, sessionID)
	if err != nil {
		return fmt.Errorf("update session progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statements.ErrNotFound
	}
	return nil
}

// UpdateSessionQuestions stores the review workload summary.
func (s *SessionStore) UpdateSessionQuestions(
	ctx context.Context,
	sessionID string,
	requires bool,
	count int,
) error {
	query := fmt.Sprintf(
		`UPDATE %s SET requires_questions = $1, questions_count = $2 WHERE id = $3`,
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, requires, count, sessionID)
	if err != nil {
		return fmt.Errorf("update session questions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statements.ErrNotFound
	}
	return nil
}

// UpdateSessionArchive attaches the results archive URI.
func (s *SessionStore) UpdateSessionArchive(ctx context.Context, sessionID string, uri string) error {
	query := fmt.Sprintf(`UPDATE %s SET archive_uri = $1 WHERE id = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, uri, sessionID)
	if err != nil {
		return fmt.Errorf("update session archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statements.ErrNotFound
	}
	return nil
}

// RecordStatement appends a classified statement row for a session.
func (s *SessionStore) RecordStatement(
	ctx context.Context,
	sessionID string,
	st statements.ClassifiedStatement,
) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	session_id, company_name, pages, destination, location,
	exact_match, similar_to, percentage,
	manual_required, ask_question, user_answered
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, s.stmtsTable)
	_, err := s.pool.Exec(
		ctx,
		query,
		sessionID,
		st.Record.CompanyName,
		st.Record.Pages,
		string(st.Classification.Destination),
		st.Classification.Location,
		st.Classification.ExactMatch,
		st.Classification.SimilarTo,
		st.Classification.Percentage,
		st.Classification.ManualRequired,
		st.Classification.AskQuestion,
		st.UserAnswered,
	)
	if err != nil {
		return fmt.Errorf("insert statement row: %w", err)
	}
	return nil
}

// ReplaceStatements deletes and re-inserts the rows for a session, typically
// after the review workflow has adjusted destinations.
func (s *SessionStore) ReplaceStatements(
	ctx context.Context,
	sessionID string,
	sts []statements.ClassifiedStatement,
) error {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.stmtsTable)
	if _, err := s.pool.Exec(ctx, deleteQuery, sessionID); err != nil {
		return fmt.Errorf("delete statement rows: %w", err)
	}
	for _, st := range sts {
		if err := s.RecordStatement(ctx, sessionID, st); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExpiredSessions removes finished sessions older than the cutoff along
// with their rows, returning the IDs of the sessions removed so callers can
// release any per-session state held elsewhere.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, olderThan time.Time) ([]string, error) {
	stmtsQuery := fmt.Sprintf(`
DELETE FROM %s WHERE session_id IN (
	SELECT id FROM %s WHERE finished_at IS NOT NULL AND finished_at < $1
)`, s.stmtsTable, s.table)
	if _, err := s.pool.Exec(ctx, stmtsQuery, olderThan); err != nil {
		return nil, fmt.Errorf("delete expired statement rows: %w", err)
	}
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE finished_at IS NOT NULL AND finished_at < $1 RETURNING id`,
		s.table,
	)
	rows, err := s.pool.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired session id: %w", err)
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired session ids: %w", err)
	}
	return removed, nil
}

// GetSession fetches a session row by ID.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (statements.Session, error) {
	query := fmt.Sprintf(`
SELECT id, status, submitted_at, started_at, finished_at, error_text, payload_hash,
	processed_statements, total_statements, requires_questions, questions_count, archive_uri
FROM %s WHERE id = $1`, s.table)
	var (
		session   statements.Session
		status    string
		errText   *string
		hash      *string
		archive   *string
		started   *time.Time
		finished  *time.Time
		processed int
		total     int
	)
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&status,
		&session.Submitted,
		&started,
		&finished,
		&errText,
		&hash,
		&processed,
		&total,
		&session.RequiresQuestions,
		&session.QuestionsCount,
		&archive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return statements.Session{}, statements.ErrNotFound
		}
		return statements.Session{}, fmt.Errorf("select session: %w", err)
	}
	session.Status = statements.SessionStatus(status)
	session.Started = started
	session.Finished = finished
	session.Progress = statements.Progress{Processed: processed, Total: total}
	if errText != nil {
		session.ErrorText = *errText
	}
	if hash != nil {
		session.PayloadHash = *hash
	}
	if archive != nil {
		session.ArchiveURI = *archive
	}
	return session, nil
}

// ListStatements returns all recorded rows for a session in insertion order.
func (s *SessionStore) ListStatements(
	ctx context.Context,
	sessionID string,
) ([]statements.ClassifiedStatement, error) {
	query := fmt.Sprintf(`
SELECT company_name, pages, destination, location,
	exact_match, similar_to, percentage,
	manual_required, ask_question, user_answered
FROM %s WHERE session_id = $1 ORDER BY id`, s.stmtsTable)
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select statement rows: %w", err)
	}
	defer rows.Close()

	var out []statements.ClassifiedStatement
	for rows.Next() {
		var (
			st          statements.ClassifiedStatement
			destination string
		)
		if err := rows.Scan(
			&st.Record.CompanyName,
			&st.Record.Pages,
			&destination,
			&st.Classification.Location,
			&st.Classification.ExactMatch,
			&st.Classification.SimilarTo,
			&st.Classification.Percentage,
			&st.Classification.ManualRequired,
			&st.Classification.AskQuestion,
			&st.UserAnswered,
		); err != nil {
			return nil, fmt.Errorf("scan statement row: %w", err)
		}
		st.Classification.Destination = statements.Destination(destination)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statement rows: %w", err)
	}
	return out, nil
}
