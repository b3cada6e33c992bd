package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

func TestRender(t *testing.T) {
	for _, key := range []string{entity.TemplateSentToClient, entity.TemplateClientAccepted, entity.TemplateClientRejected} {
		text, err := Render(&entity.Notification{TemplateKey: key, EntityID: "q-9"})
		require.NoError(t, err)
		assert.Contains(t, text, "q-9")
	}

	_, err := Render(&entity.Notification{TemplateKey: "unknown"})
	assert.Error(t, err)
}

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), &entity.Notification{
		ID:          "n-1",
		Kind:        entity.NotificationQuotationAccepted,
		EntityID:    "q-1",
		RecipientID: "pm-1",
		TemplateKey: entity.TemplateClientAccepted,
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("Notification delivered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pm-1", entries[0].ContextMap()["recipient_id"])

	assert.Error(t, n.Notify(context.Background(), &entity.Notification{TemplateKey: entity.TemplateClientAccepted}))
}
