package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func auditEvent() *event.Event {
	return event.NewAudit("Quotation", "q-1", "pm-1", "Approved", "approved by PM", time.Now())
}

func TestSubscribeNamed(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))

	d.SubscribeNamed(event.TypeAuditAppend, "audit-adapter", func(ctx context.Context, evt *event.Event) error { return nil })
	d.SubscribeNamed(event.TypeAuditAppend, "audit-mirror", func(ctx context.Context, evt *event.Event) error { return nil })

	assert.Equal(t, 2, d.HandlerCount(event.TypeAuditAppend))
	assert.Equal(t, 0, d.HandlerCount(event.TypeNotificationSend))
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.SubscribeNamed(event.TypeAuditAppend, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeAuditAppend, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), auditEvent()))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("only routes to matching type", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.SubscribeNamed(event.TypeNotificationSend, "handler-1", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), auditEvent()))
		assert.False(t, called)
	})

	t.Run("keeps running after a handler fails and joins errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("boom")
		secondRan := false
		d.SubscribeNamed(event.TypeAuditAppend, "failing", func(ctx context.Context, evt *event.Event) error {
			return boom
		})
		d.SubscribeNamed(event.TypeAuditAppend, "healthy", func(ctx context.Context, evt *event.Event) error {
			secondRan = true
			return nil
		})

		err := d.Dispatch(context.Background(), auditEvent())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failing")
		assert.True(t, secondRan)
		assert.Equal(t, 1, logger.ErrorCount())
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		d.SubscribeNamed(event.TypeAuditAppend, "handler-2", func(ctx context.Context, evt *event.Event) error {
			panic("kaboom")
		})

		err := d.Dispatch(context.Background(), auditEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic: kaboom")
	})

	t.Run("returns ErrClosed after close", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.ErrorIs(t, d.Dispatch(context.Background(), auditEvent()), ErrClosed)
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("delivers to every handler", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32
		for i := 0; i < 3; i++ {
			d.SubscribeNamed(event.TypeNotificationSend, "handler-3", func(ctx context.Context, evt *event.Event) error {
				count.Add(1)
				return nil
			})
		}

		evt := event.NewNotification("Quotation", "q-1", "pm-1", "QuotationSentToClient", "client-1", "quotation.sent_to_client", time.Now())
		d.DispatchAsync(context.Background(), evt)
		require.NoError(t, d.Close())
		assert.Equal(t, int32(3), count.Load())
	})

	t.Run("survives request context cancellation", func(t *testing.T) {
		d := NewDispatcher()
		var sawErr atomic.Value
		d.SubscribeNamed(event.TypeAuditAppend, "handler-4", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			if ctx.Err() != nil {
				sawErr.Store(ctx.Err())
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, auditEvent())
		cancel()
		require.NoError(t, d.Close())
		assert.Nil(t, sawErr.Load())
	})

	t.Run("logs handler errors and panics", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.SubscribeNamed(event.TypeAuditAppend, "handler-5", func(ctx context.Context, evt *event.Event) error {
			return errors.New("down")
		})
		d.SubscribeNamed(event.TypeAuditAppend, "handler-6", func(ctx context.Context, evt *event.Event) error {
			panic("oops")
		})

		d.DispatchAsync(context.Background(), auditEvent())
		require.NoError(t, d.Close())
		// panic recovery plus the two async handler errors
		assert.Equal(t, 3, logger.ErrorCount())
	})

	t.Run("drops events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false
		d.SubscribeNamed(event.TypeAuditAppend, "handler-7", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		require.NoError(t, d.Close())
		d.DispatchAsync(context.Background(), auditEvent())
		assert.False(t, called)
		assert.Equal(t, 1, logger.ErrorCount())
	})
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
}

func TestConcurrentDispatch(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeNamed(event.TypeAuditAppend, "handler-8", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), auditEvent())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), count.Load())
}

func TestCloseWaitsForAcceptedAsyncHandlers(t *testing.T) {
	for round := 0; round < 20; round++ {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var ran atomic.Int32
		d.SubscribeNamed(event.TypeNotificationSend, "slow", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		})

		const sends = 10
		var wg sync.WaitGroup
		for i := 0; i < sends; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.DispatchAsync(context.Background(), event.NewNotification("Quotation", "q-1", "pm-1",
					"QuotationSentToClient", "client-1", "quotation.sent_to_client", time.Now()))
			}()
		}
		require.NoError(t, d.Close())
		afterClose := ran.Load()
		wg.Wait()

		// every event the dispatcher accepted was handled before Close returned
		accepted := int32(sends - logger.ErrorCount())
		assert.Equal(t, accepted, afterClose)
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, afterClose, ran.Load())
	}
}
