package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/memory"
)

type mockNotifier struct {
	notifyFunc func(ctx context.Context, n *entity.Notification) error
	sent       []*entity.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	m.sent = append(m.sent, n)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, n)
	}
	return nil
}

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestAuditAdapter_Handle(t *testing.T) {
	sink := memory.NewAuditLog()
	a := NewAuditAdapter(sink, zap.NewNop())
	ctx := context.Background()

	evt := event.NewAudit(entity.EntityTypeQuotation, "q-1", "pm-1", "Approved", "approved", at).
		WithPayload(event.KeyVersion, int64(3))

	require.NoError(t, a.Handle(ctx, evt))
	// a retried dispatch of the same transition does not duplicate the entry
	require.NoError(t, a.Handle(ctx, evt))

	entries, err := sink.ListByEntity(ctx, entity.EntityTypeQuotation, "q-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q-1:3:Approved", entries[0].ID)
	assert.Equal(t, "Approved", entries[0].Action)
	assert.Equal(t, "pm-1", entries[0].ActorID)
	assert.Equal(t, "approved", entries[0].Description)
	assert.True(t, entries[0].TimestampUTC.Equal(at))
}

func TestAuditAdapter_LogsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAuditAdapter(memory.NewAuditLog(), zap.New(core))

	evt := event.NewAudit(entity.EntityTypeQuotation, "q-1", "pm-1", "Created", "created", at).
		WithPayload(event.KeyVersion, int64(1)).
		WithCorrelation("req-7")
	require.NoError(t, a.Handle(context.Background(), evt))

	entries := logs.FilterMessage("Audit entry appended").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-7", entries[0].ContextMap()["correlation_id"])
}

func TestAuditAdapter_RequiresAction(t *testing.T) {
	a := NewAuditAdapter(memory.NewAuditLog(), zap.NewNop())
	evt := event.NewEvent(event.TypeAuditAppend, entity.EntityTypeQuotation, "q-1", "pm-1", nil, at)
	assert.Error(t, a.Handle(context.Background(), evt))
}

func TestNotificationAdapter_Handle(t *testing.T) {
	newEvent := func() *event.Event {
		return event.NewNotification(entity.EntityTypeQuotation, "q-1", "pm-1",
			entity.NotificationQuotationSent, "client-1", entity.TemplateSentToClient, at)
	}

	t.Run("marks sent on success", func(t *testing.T) {
		repo := memory.NewNotificationRepository()
		notifier := &mockNotifier{}
		a := NewNotificationAdapter(repo, notifier, zap.NewNop())

		require.NoError(t, a.Handle(context.Background(), newEvent()))
		require.Len(t, notifier.sent, 1)
		n := notifier.sent[0]
		assert.Equal(t, "client-1", n.RecipientID)
		assert.Equal(t, entity.TemplateSentToClient, n.TemplateKey)

		stored, ok := repo.Get(n.ID)
		require.True(t, ok)
		assert.Equal(t, entity.NotificationStatusSent, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
	})

	t.Run("marks failed and reports error", func(t *testing.T) {
		repo := memory.NewNotificationRepository()
		notifier := &mockNotifier{notifyFunc: func(ctx context.Context, n *entity.Notification) error {
			return errors.New("lark unavailable")
		}}
		a := NewNotificationAdapter(repo, notifier, zap.NewNop())

		err := a.Handle(context.Background(), newEvent())
		require.Error(t, err)

		stored, ok := repo.Get(notifier.sent[0].ID)
		require.True(t, ok)
		assert.Equal(t, entity.NotificationStatusFailed, stored.Status)
		assert.Equal(t, "lark unavailable", stored.LastError)

		retryable, err := repo.ListRetryable(context.Background(), 3, 10)
		require.NoError(t, err)
		assert.Len(t, retryable, 1)
	})

	t.Run("rejects event without recipient", func(t *testing.T) {
		a := NewNotificationAdapter(memory.NewNotificationRepository(), &mockNotifier{}, zap.NewNop())
		evt := event.NewNotification(entity.EntityTypeQuotation, "q-1", "pm-1", "k", "", "t", at)
		assert.Error(t, a.Handle(context.Background(), evt))
	})
}
