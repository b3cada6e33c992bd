package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
)

// NotificationAdapter turns notification.send effects into delivered,
// persisted notifications
type NotificationAdapter struct {
	repo     port.NotificationRepository
	notifier port.Notifier
	logger   *zap.Logger
}

// NewNotificationAdapter creates a new notification adapter
func NewNotificationAdapter(repo port.NotificationRepository, notifier port.Notifier, logger *zap.Logger) *NotificationAdapter {
	return &NotificationAdapter{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle is a dispatcher.Handler for event.TypeNotificationSend
func (a *NotificationAdapter) Handle(ctx context.Context, evt *event.Event) error {
	n := &entity.Notification{
		ID:          uuid.NewString(),
		Kind:        evt.GetPayloadString(event.KeyKind),
		EntityID:    evt.EntityID,
		ActorID:     evt.ActorID,
		RecipientID: evt.GetPayloadString(event.KeyRecipientID),
		TemplateKey: evt.GetPayloadString(event.KeyTemplateKey),
		Status:      entity.NotificationStatusPending,
		CreatedAt:   evt.Timestamp,
	}
	if n.RecipientID == "" {
		return fmt.Errorf("notification event %s has no recipient", evt.ID)
	}

	if err := a.repo.Create(ctx, n); err != nil {
		a.logger.Error("Failed to record notification",
			zap.String("entity_id", n.EntityID),
			zap.String("kind", n.Kind),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Error(err))
		return fmt.Errorf("record notification: %w", err)
	}

	a.logger.Debug("Notification recorded",
		zap.String("notification_id", n.ID),
		zap.String("correlation_id", evt.CorrelationID))
	return a.Deliver(ctx, n)
}

// Deliver sends n and records the outcome. It is also the retry path.
func (a *NotificationAdapter) Deliver(ctx context.Context, n *entity.Notification) error {
	sendErr := a.notifier.Notify(ctx, n)

	status, lastError := entity.NotificationStatusSent, ""
	if sendErr != nil {
		status, lastError = entity.NotificationStatusFailed, sendErr.Error()
	}

	if err := a.repo.UpdateStatus(ctx, n.ID, status, lastError); err != nil {
		a.logger.Error("Failed to update notification status",
			zap.String("notification_id", n.ID),
			zap.String("status", status),
			zap.Error(err))
	}

	if sendErr != nil {
		a.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("kind", n.Kind),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(sendErr))
		return fmt.Errorf("deliver notification %s: %w", n.ID, sendErr)
	}

	a.logger.Info("Notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("kind", n.Kind),
		zap.String("recipient_id", n.RecipientID))
	return nil
}
