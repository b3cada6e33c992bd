package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditSink on the append-only audit_log table
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts entry; an entry whose id is already present is ignored
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT OR IGNORE INTO audit_log (
			id, entity_type, entity_id, action, description, actor_id, timestamp_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.Description,
		entry.ActorID,
		entry.TimestampUTC.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		r.logger.Debug("Audit entry already recorded", zap.String("id", entry.ID))
	}
	return nil
}

// ListByEntity returns the entity's trail in append order
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, description, actor_id, timestamp_utc
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY seq ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.AuditEntry, 0)
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.EntityType,
			&e.EntityID,
			&e.Action,
			&e.Description,
			&e.ActorID,
			&e.TimestampUTC,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.TimestampUTC = e.TimestampUTC.UTC()
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (r *AuditRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.AuditSink = (*AuditRepository)(nil)
