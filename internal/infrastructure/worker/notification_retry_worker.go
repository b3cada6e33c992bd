package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

// RetryWorkerConfig holds configuration for the notification retry worker
type RetryWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SendTimeout  time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		SendTimeout:  10 * time.Second,
	}
}

// Deliverer re-sends one stored notification and records the outcome
type Deliverer interface {
	Deliver(ctx context.Context, n *entity.Notification) error
}

// NotificationRetryWorker re-sends FAILED notifications in the background
type NotificationRetryWorker struct {
	config    RetryWorkerConfig
	repo      port.NotificationRepository
	deliverer Deliverer
	logger    *zap.Logger

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	retriedCount int
	failedCount  int
}

// NewNotificationRetryWorker creates a new retry worker
func NewNotificationRetryWorker(
	config RetryWorkerConfig,
	repo port.NotificationRepository,
	deliverer Deliverer,
	logger *zap.Logger,
) *NotificationRetryWorker {
	defaults := DefaultRetryWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	return &NotificationRetryWorker{
		config:    config,
		repo:      repo,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start begins the polling loop
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification retry worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("NotificationRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	retried, failed := w.retriedCount, w.failedCount
	w.mu.Unlock()

	w.logger.Info("NotificationRetryWorker stopped",
		zap.Int("retried_count", retried),
		zap.Int("failed_count", failed))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetryWorker) Name() string {
	return "NotificationRetryWorker"
}

func (w *NotificationRetryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// processBatch retries one batch of failed notifications
func (w *NotificationRetryWorker) processBatch(ctx context.Context) {
	pending, err := w.repo.ListRetryable(ctx, w.config.MaxAttempts, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list retryable notifications", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	w.logger.Debug("Retrying notifications", zap.Int("count", len(pending)))

	for _, n := range pending {
		if ctx.Err() != nil {
			return
		}

		sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
		err := w.deliverer.Deliver(sendCtx, n)
		cancel()

		w.mu.Lock()
		w.retriedCount++
		if err != nil {
			w.failedCount++
		}
		w.mu.Unlock()

		if err != nil && n.Attempts+1 >= w.config.MaxAttempts {
			w.logger.Warn("Notification gave up after max attempts",
				zap.String("notification_id", n.ID),
				zap.Int("attempts", n.Attempts+1))
		}
	}
}
