package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			id, kind, entity_id, actor_id, recipient_id, template_key,
			status, attempts, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		n.ID,
		n.Kind,
		n.EntityID,
		n.ActorID,
		n.RecipientID,
		n.TemplateKey,
		n.Status,
		n.Attempts,
		n.LastError,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("entity_id", n.EntityID),
			zap.String("kind", n.Kind),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// UpdateStatus records a delivery attempt outcome
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	query := `
		UPDATE notifications
		SET status = ?, last_error = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, status, lastError, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update notification status",
			zap.String("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s not found", id)
	}

	return nil
}

// ListRetryable returns failed notifications that still have attempts left, oldest first
func (r *NotificationRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, kind, entity_id, actor_id, recipient_id, template_key,
			status, attempts, last_error, created_at, updated_at
		FROM notifications
		WHERE status = ? AND attempts < ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.NotificationStatusFailed, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to list retryable notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var result []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Kind,
			&n.EntityID,
			&n.ActorID,
			&n.RecipientID,
			&n.TemplateKey,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.CreatedAt,
			&n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, &n)
	}

	return result, rows.Err()
}

func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
