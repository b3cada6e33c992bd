// Package memory provides in-process implementations of the persistence
// ports. They back the "memory" database driver and the service tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

type docKey struct {
	collection string
	id         string
}

type journalKey struct{}

// journal records how to undo the writes made inside one transaction
type journal struct {
	undo []func()
}

// Store is an in-memory DocumentStore and TransactionManager
type Store struct {
	mu   sync.Mutex
	docs map[docKey]port.Document
	// txMu serialises transactions with each other and with writes made
	// outside one, so an undo never reverts a write it did not make
	txMu sync.Mutex
	now  func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		docs: make(map[docKey]port.Document),
		now:  time.Now,
	}
}

// WithTransaction runs fn; if fn fails, every write it made is undone
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrites holds txMu for a write made outside a transaction. Writes
// inside one already run under it.
func (s *Store) lockWrites(ctx context.Context) func() {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// record must be called with s.mu held, before key is modified
func (s *Store) record(ctx context.Context, key docKey) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok {
		return
	}
	prev, existed := s.docs[key]
	j.undo = append(j.undo, func() {
		if existed {
			s.docs[key] = prev
		} else {
			delete(s.docs, key)
		}
	})
}

func (s *Store) Get(ctx context.Context, collection, id string) (*port.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docKey{collection, id}]
	if !ok {
		return nil, port.ErrDocumentNotFound
	}
	doc.Data = append(json.RawMessage(nil), doc.Data...)
	return &doc, nil
}

func (s *Store) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	return id, s.AddWithID(ctx, collection, id, data)
}

func (s *Store) AddWithID(ctx context.Context, collection, id string, data json.RawMessage) error {
	defer s.lockWrites(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{collection, id}
	if _, ok := s.docs[key]; ok {
		return port.ErrDocumentExists
	}
	s.record(ctx, key)

	now := s.now().UTC()
	s.docs[key] = port.Document{
		Collection: collection,
		ID:         id,
		Version:    1,
		Data:       append(json.RawMessage(nil), data...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (int64, error) {
	defer s.lockWrites(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{collection, id}
	doc, ok := s.docs[key]
	if !ok {
		return 0, port.ErrDocumentNotFound
	}
	if doc.Version != expectedVersion {
		return 0, port.ErrVersionConflict
	}
	s.record(ctx, key)

	doc.Version++
	doc.Data = append(json.RawMessage(nil), data...)
	doc.UpdatedAt = s.now().UTC()
	s.docs[key] = doc
	return doc.Version, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	defer s.lockWrites(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{collection, id}
	if _, ok := s.docs[key]; !ok {
		return port.ErrDocumentNotFound
	}
	s.record(ctx, key)
	delete(s.docs, key)
	return nil
}

// Count returns the number of documents in collection
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.docs {
		if k.collection == collection {
			n++
		}
	}
	return n
}

// AuditLog is an in-memory append-only AuditSink
type AuditLog struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
	seen    map[string]bool
}

// NewAuditLog creates an empty audit log
func NewAuditLog() *AuditLog {
	return &AuditLog{seen: make(map[string]bool)}
}

func (a *AuditLog) Append(ctx context.Context, entry *entity.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seen[entry.ID] {
		return nil
	}
	a.seen[entry.ID] = true
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *AuditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]*entity.AuditEntry, 0)
	for i := range a.entries {
		e := a.entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			result = append(result, &e)
		}
	}
	return result, nil
}

// NotificationRepository is an in-memory port.NotificationRepository
type NotificationRepository struct {
	mu    sync.Mutex
	items map[string]entity.Notification
}

// NewNotificationRepository creates an empty repository
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[string]entity.Notification)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	r.items[n.ID] = *n
	return nil
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok {
		return port.ErrDocumentNotFound
	}
	n.Status = status
	n.LastError = lastError
	n.Attempts++
	n.UpdatedAt = time.Now().UTC()
	r.items[id] = n
	return nil
}

func (r *NotificationRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Notification
	for _, n := range r.items {
		if n.Status == entity.NotificationStatusFailed && n.Attempts < maxAttempts {
			n := n
			result = append(result, &n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Get returns a copy of the notification with id
func (r *NotificationRepository) Get(id string) (entity.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	return n, ok
}

// Verify interface compliance
var (
	_ port.DocumentStore          = (*Store)(nil)
	_ port.TransactionManager     = (*Store)(nil)
	_ port.AuditSink              = (*AuditLog)(nil)
	_ port.NotificationRepository = (*NotificationRepository)(nil)
)
