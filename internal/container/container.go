package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/dispatcher"
	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/garyjia/sitequote/internal/infrastructure/adapter"
	"github.com/garyjia/sitequote/internal/infrastructure/worker"
	httpserver "github.com/garyjia/sitequote/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	stores     *StoreBundle
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	server     *httpserver.Server
	workers    *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the background workers.
// Order: stores, notifier and dispatcher, services, HTTP server, workers.
// The HTTP server is built but not listening; call Server().Start.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	stores, err := ProvideStores(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}
	c.stores = stores
	c.logger.Info("Stores initialized", zap.String("driver", c.config.Database.Driver))

	notifier, err := ProvideNotifier(&c.config.Notification, &c.config.Lark, c.logger)
	if err != nil {
		c.closeStores()
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	notificationAdapter := adapter.NewNotificationAdapter(stores.Notifications, notifier, c.logger)
	c.dispatcher = ProvideDispatcher(stores, notificationAdapter, c.logger)
	c.logger.Info("Dispatcher initialized")

	c.services = ProvideServices(&c.config.Pricing, stores, c.dispatcher, c.logger)
	c.logger.Info("Application services initialized")

	c.server, err = ProvideHTTPServer(c.config, c.services, c.logger)
	if err != nil {
		_ = c.dispatcher.Close()
		c.closeStores()
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	c.workers = ProvideWorkers(&c.config.Worker, stores, notificationAdapter, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		_ = c.dispatcher.Close()
		c.closeStores()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// waits for in-flight notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeStores(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeStores() error {
	if c.stores == nil || c.stores.SqlDB == nil {
		return nil
	}
	return c.stores.SqlDB.Close()
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.stores == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	case c.stores.SqlDB == nil:
		status.Components["database"] = ComponentHealth{Healthy: true, Message: "in-memory"}
	default:
		if err := c.stores.SqlDB.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		}
		if !c.workers.IsRunning() {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	// Every effect type needs a subscriber or its effects are silently dropped
	dispatcherHealth := ComponentHealth{Healthy: c.dispatcher != nil, Message: "not initialized"}
	if c.dispatcher != nil {
		audits := c.dispatcher.HandlerCount(event.TypeAuditAppend)
		notifications := c.dispatcher.HandlerCount(event.TypeNotificationSend)
		dispatcherHealth.Healthy = audits > 0 && notifications > 0
		dispatcherHealth.Message = fmt.Sprintf("audit handlers: %d, notification handlers: %d", audits, notifications)
	}
	status.Components["dispatcher"] = dispatcherHealth
	if !dispatcherHealth.Healthy {
		status.Overall = false
	}

	return status
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Stores returns the persistence ports.
func (c *Container) Stores() *StoreBundle {
	return c.stores
}

// Server returns the HTTP server.
func (c *Container) Server() *httpserver.Server {
	return c.server
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// of the application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
