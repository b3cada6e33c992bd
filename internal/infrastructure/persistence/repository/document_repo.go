package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/sqlite"
)

// DocumentRepository implements port.DocumentStore on the documents table
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves a document by collection and id
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (*port.Document, error) {
	query := `
		SELECT collection, id, version, data, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`

	var doc port.Document
	var data string
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, collection, id).Scan(
		&doc.Collection,
		&doc.ID,
		&doc.Version,
		&data,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrDocumentNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Data = json.RawMessage(data)
	return &doc, nil
}

// Add stores data under a generated id
func (r *DocumentRepository) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	if err := r.AddWithID(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// AddWithID stores data under id at version 1
func (r *DocumentRepository) AddWithID(ctx context.Context, collection, id string, data json.RawMessage) error {
	query := `
		INSERT INTO documents (collection, id, version, data, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
	`

	now := r.now().UTC()
	_, err := r.getExecutor(ctx).ExecContext(ctx, query, collection, id, string(data), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrDocumentExists
		}
		r.logger.Error("Failed to add document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to add document: %w", err)
	}

	return nil
}

// Update replaces data when the stored version equals expectedVersion
func (r *DocumentRepository) Update(ctx context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (int64, error) {
	query := `
		UPDATE documents
		SET data = ?, version = version + 1, updated_at = ?
		WHERE collection = ? AND id = ? AND version = ?
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query, string(data), r.now().UTC(), collection, id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return 0, fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either gone or moved on since it was read
		if _, err := r.Get(ctx, collection, id); err != nil {
			return 0, err
		}
		r.logger.Warn("Document version conflict",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Int64("expected_version", expectedVersion))
		return 0, port.ErrVersionConflict
	}

	return expectedVersion + 1, nil
}

// Delete removes a document
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		r.logger.Error("Failed to delete document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Verify interface compliance
var _ port.DocumentStore = (*DocumentRepository)(nil)
