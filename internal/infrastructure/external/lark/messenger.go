package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/infrastructure/notify"
)

const defaultReceiveIDType = "open_id"

// messageSender is the part of MessageAPI the messenger needs
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Messenger implements port.Notifier by sending Lark text messages
type Messenger struct {
	sender        messageSender
	receiveIDType string
	recipients    map[string]string
	logger        *zap.Logger
}

// NewMessenger creates a Lark notifier
func NewMessenger(sdk *SDKClient, cfg Config, logger *zap.Logger) *Messenger {
	return newMessenger(NewMessageAPI(sdk, logger), cfg, logger)
}

func newMessenger(sender messageSender, cfg Config, logger *zap.Logger) *Messenger {
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = defaultReceiveIDType
	}
	// Config loaders lowercase map keys, so user ids are matched case-insensitively
	recipients := make(map[string]string, len(cfg.Recipients))
	for userID, receiveID := range cfg.Recipients {
		recipients[strings.ToLower(userID)] = receiveID
	}
	return &Messenger{
		sender:        sender,
		receiveIDType: idType,
		recipients:    recipients,
		logger:        logger,
	}
}

// Notify renders the notification's template and sends it to the recipient
func (m *Messenger) Notify(ctx context.Context, n *entity.Notification) error {
	if n.RecipientID == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	text, err := notify.Render(n)
	if err != nil {
		return err
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	receiveID := n.RecipientID
	if mapped, ok := m.recipients[strings.ToLower(n.RecipientID)]; ok && mapped != "" {
		receiveID = mapped
	}

	if _, err := m.sender.SendMessage(ctx, m.receiveIDType, receiveID, "text", string(content)); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", n.Kind, err)
	}
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Messenger)(nil)
