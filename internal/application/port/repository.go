package port

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

var (
	// ErrDocumentNotFound is returned when collection/id does not resolve
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentExists is returned by AddWithID when the id is taken
	ErrDocumentExists = errors.New("document already exists")

	// ErrVersionConflict is returned by Update when the stored version advanced
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is one stored JSON document plus its optimistic version token
type Document struct {
	Collection string
	ID         string
	Version    int64
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentStore is the CRUD gateway over named collections
type DocumentStore interface {
	// Get returns ErrDocumentNotFound when the document is absent
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Add stores data under a generated id and returns it
	Add(ctx context.Context, collection string, data json.RawMessage) (string, error)

	// AddWithID stores data under id; fails with ErrDocumentExists if taken
	AddWithID(ctx context.Context, collection, id string, data json.RawMessage) error

	// Update replaces data if the stored version equals expectedVersion and
	// returns the new version; fails with ErrVersionConflict otherwise
	Update(ctx context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (int64, error)

	// Delete removes the document; ErrDocumentNotFound if absent
	Delete(ctx context.Context, collection, id string) error
}

// AuditSink is the append-only audit log
type AuditSink interface {
	// Append writes entry; appending an entry id that already exists is a no-op
	Append(ctx context.Context, entry *entity.AuditEntry) error

	// ListByEntity returns entries for one entity, oldest first
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEntry, error)
}

// NotificationRepository persists notification delivery records
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	UpdateStatus(ctx context.Context, id, status, lastError string) error
	// ListRetryable returns FAILED notifications with fewer than maxAttempts attempts
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error)
}

// TransactionManager handles store transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
