// Package memory provides an in-memory session store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/LaazAlae/alaeautomates-backend/internal/clock/system"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// SessionStore keeps sessions and classified statements in maps.
type SessionStore struct {
	mu    sync.RWMutex
	clock statements.Clock
	items map[string]statements.Session
	rows  map[string][]statements.ClassifiedStatement
}

// NewSessionStore constructs a SessionStore. A nil clock falls back to the
// system clock.
func NewSessionStore(clock statements.Clock) *SessionStore {
	if clock == nil {
		clock = system.New()
	}
	return &SessionStore{
		clock: clock,
		items: make(map[string]statements.Session),
		rows:  make(map[string][]statements.ClassifiedStatement),
	}
}

// CreateSession stores a new session in pending status.
func (s *SessionStore) CreateSession(_ context.Context, session statements.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[session.ID]; exists {
		return statements.ErrAlreadyExists
	}
	s.items[session.ID] = session
	return nil
}

// UpdateSessionStatus transitions a session and stamps start/finish times.
func (s *SessionStore) UpdateSessionStatus(
	_ context.Context,
	sessionID string,
	status statements.SessionStatus,
	errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[sessionID]
	if !ok {
		return statements.ErrNotFound
	}
	session.Status = status
	session.ErrorText = errText
	now := s.clock.Now().UTC()
	if status == statements.StatusProcessing && session.Started == nil {
		session.Started = pointerTime(now)
	}
	if statements.TerminalStatus(status) {
		session.Finished = pointerTime(now)
	}
	s.items[sessionID] = session
	return nil
}

// UpdateSessionProgress records classification progress counters.
func (s *SessionStore) UpdateSessionProgress(
	_ context.Context,
	sessionID string,
	progress statements.Progress,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[sessionID]
	if !ok {
		return statements.ErrNotFound
	}
	session.Progress = progress
	s.items[sessionID] = session
	return nil
}

// UpdateSessionQuestions stores the review workload summary.
func (s *SessionStore) UpdateSessionQuestions(
	_ context.Context,
	sessionID string,
	requires bool,
	count int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[sessionID]
	if !ok {
		return statements.ErrNotFound
	}
	session.RequiresQuestions = requires
	session.QuestionsCount = count
	s.items[sessionID] = session
	return nil
}

// UpdateSessionArchive attaches the results archive URI.
func (s *SessionStore) UpdateSessionArchive(_ context.Context, sessionID string, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[sessionID]
	if !ok {
		return statements.ErrNotFound
	}
	session.ArchiveURI = uri
	s.items[sessionID] = session
	return nil
}

// RecordStatement appends a classified statement row for a session.
func (s *SessionStore) RecordStatement(
	_ context.Context,
	sessionID string,
	st statements.ClassifiedStatement,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[sessionID]; !ok {
		return statements.ErrNotFound
	}
	s.rows[sessionID] = append(s.rows[sessionID], st)
	return nil
}

// ReplaceStatements swaps the recorded rows for a session, typically after
// the review workflow has adjusted destinations.
func (s *SessionStore) ReplaceStatements(
	_ context.Context,
	sessionID string,
	sts []statements.ClassifiedStatement,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[sessionID]; !ok {
		return statements.ErrNotFound
	}
	rows := make([]statements.ClassifiedStatement, len(sts))
	copy(rows, sts)
	s.rows[sessionID] = rows
	return nil
}

// GetSession fetches a session by ID.
func (s *SessionStore) GetSession(_ context.Context, sessionID string) (statements.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.items[sessionID]
	if !ok {
		return statements.Session{}, statements.ErrNotFound
	}
	return session, nil
}

// ListStatements returns all recorded rows for a session.
func (s *SessionStore) ListStatements(
	_ context.Context,
	sessionID string,
) ([]statements.ClassifiedStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.rows[sessionID]
	out := make([]statements.ClassifiedStatement, len(rows))
	copy(out, rows)
	return out, nil
}

// DeleteExpiredSessions removes finished sessions older than the cutoff along
// with their rows, returning the IDs of the sessions removed so callers can
// release any per-session state held elsewhere.
func (s *SessionStore) DeleteExpiredSessions(_ context.Context, olderThan time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, session := range s.items {
		if session.Finished == nil || !session.Finished.Before(olderThan) {
			continue
		}
		delete(s.items, id)
		delete(s.rows, id)
		removed = append(removed, id)
	}
	return removed, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
