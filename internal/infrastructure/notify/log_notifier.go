package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

// LogNotifier writes rendered notifications to the log. It is the
// transport used when Lark delivery is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the rendered message
func (n *LogNotifier) Notify(ctx context.Context, notification *entity.Notification) error {
	if notification.RecipientID == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	text, err := Render(notification)
	if err != nil {
		return err
	}

	n.logger.Info("Notification delivered",
		zap.String("notification_id", notification.ID),
		zap.String("kind", notification.Kind),
		zap.String("recipient_id", notification.RecipientID),
		zap.String("entity_id", notification.EntityID),
		zap.String("text", text))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
