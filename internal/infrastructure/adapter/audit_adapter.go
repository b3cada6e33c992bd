package adapter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
)

// AuditAdapter turns audit.append effects into audit sink entries
type AuditAdapter struct {
	sink   port.AuditSink
	logger *zap.Logger
}

// NewAuditAdapter creates a new audit adapter
func NewAuditAdapter(sink port.AuditSink, logger *zap.Logger) *AuditAdapter {
	return &AuditAdapter{
		sink:   sink,
		logger: logger,
	}
}

// AuditEntryID derives the entry id from the quotation version the
// transition produced, so appending the same transition twice is a no-op
func AuditEntryID(entityID string, version int64, action string) string {
	return fmt.Sprintf("%s:%d:%s", entityID, version, action)
}

// Handle is a dispatcher.Handler for event.TypeAuditAppend
func (a *AuditAdapter) Handle(ctx context.Context, evt *event.Event) error {
	action := evt.GetPayloadString(event.KeyAction)
	if action == "" {
		return fmt.Errorf("audit event %s has no action", evt.ID)
	}

	entry := &entity.AuditEntry{
		ID:           AuditEntryID(evt.EntityID, evt.GetPayloadInt(event.KeyVersion), action),
		EntityType:   evt.EntityType,
		EntityID:     evt.EntityID,
		Action:       action,
		Description:  evt.GetPayloadString(event.KeyDescription),
		ActorID:      evt.ActorID,
		TimestampUTC: evt.Timestamp.UTC(),
	}

	if err := a.sink.Append(ctx, entry); err != nil {
		a.logger.Error("Failed to append audit entry",
			zap.String("entity_id", entry.EntityID),
			zap.String("action", action),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Error(err))
		return fmt.Errorf("append audit entry: %w", err)
	}

	a.logger.Debug("Audit entry appended",
		zap.String("id", entry.ID),
		zap.String("actor_id", entry.ActorID),
		zap.String("correlation_id", evt.CorrelationID))
	return nil
}
