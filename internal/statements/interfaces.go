package statements

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store sentinel errors.
var (
	// ErrNotFound is returned by stores when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when creating a session with a taken ID.
	ErrAlreadyExists = errors.New("session already exists")
)

// SessionStore persists session and classified statement metadata.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus, errText string) error
	UpdateSessionProgress(ctx context.Context, sessionID string, progress Progress) error
	UpdateSessionQuestions(ctx context.Context, sessionID string, requires bool, count int) error
	UpdateSessionArchive(ctx context.Context, sessionID string, uri string) error
	RecordStatement(ctx context.Context, sessionID string, st ClassifiedStatement) error
	ReplaceStatements(ctx context.Context, sessionID string, sts []ClassifiedStatement) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListStatements(ctx context.Context, sessionID string) ([]ClassifiedStatement, error)
}

// BlobStore writes result artifacts and returns a URI; GetObject streams an
// artifact back for the download endpoint.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// Publisher pushes session completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for session work items.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for submission integrity tracking.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
