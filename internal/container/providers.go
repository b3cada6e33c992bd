package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/dispatcher"
	"github.com/garyjia/sitequote/internal/application/policy"
	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/application/service"
	"github.com/garyjia/sitequote/internal/application/workflow"
	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/garyjia/sitequote/internal/domain/pricing"
	"github.com/garyjia/sitequote/internal/infrastructure/adapter"
	"github.com/garyjia/sitequote/internal/infrastructure/auth"
	"github.com/garyjia/sitequote/internal/infrastructure/export"
	infraLark "github.com/garyjia/sitequote/internal/infrastructure/external/lark"
	"github.com/garyjia/sitequote/internal/infrastructure/notify"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/memory"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/repository"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/sitequote/internal/infrastructure/worker"
	httpserver "github.com/garyjia/sitequote/internal/interfaces/http"
	"github.com/garyjia/sitequote/pkg/database"
)

// StoreBundle holds the persistence ports, backed by sqlite or memory.
type StoreBundle struct {
	// SqlDB is nil for the memory driver
	SqlDB         *sql.DB
	Documents     port.DocumentStore
	TxManager     port.TransactionManager
	Audit         port.AuditSink
	Notifications port.NotificationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Quotations service.QuotationService
	Catalog    service.CatalogService
}

// ProvideStores opens the configured store. For sqlite it also runs the
// embedded schema migrations.
func ProvideStores(cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == DriverMemory {
		store := memory.NewStore()
		logger.Info("Using in-memory document store")
		return &StoreBundle{
			Documents:     store,
			TxManager:     store,
			Audit:         memory.NewAuditLog(),
			Notifications: memory.NewNotificationRepository(),
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{
		SqlDB:         db.DB,
		Documents:     repository.NewDocumentRepository(db.DB, logger),
		TxManager:     sqlite.NewDB(db.DB, logger),
		Audit:         repository.NewAuditRepository(db.DB, logger),
		Notifications: repository.NewNotificationRepository(db.DB, logger),
	}, nil
}

// ProvideNotifier selects the notification transport.
func ProvideNotifier(cfg *NotificationConfig, larkCfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	switch cfg.Transport {
	case TransportLark:
		lc := infraLark.Config{
			AppID:         larkCfg.AppID,
			AppSecret:     larkCfg.AppSecret,
			ReceiveIDType: larkCfg.ReceiveIDType,
			Recipients:    larkCfg.Recipients,
		}
		sdk := infraLark.NewSDKClient(lc, logger)
		logger.Info("Using Lark notification transport", zap.String("app_id", sdk.GetAppID()))
		return infraLark.NewMessenger(sdk, lc, logger), nil
	case TransportLog, "":
		return notify.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification transport %q", cfg.Transport)
	}
}

// ProvideDispatcher creates the event dispatcher and subscribes the
// audit and notification adapters.
func ProvideDispatcher(stores *StoreBundle, notificationAdapter *adapter.NotificationAdapter, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	)
	d.SubscribeNamed(event.TypeAuditAppend, "audit_sink",
		adapter.NewAuditAdapter(stores.Audit, logger).Handle)
	d.SubscribeNamed(event.TypeNotificationSend, "notifier", notificationAdapter.Handle)
	return d
}

// ProvideServices creates the application services.
func ProvideServices(cfg *PricingConfig, stores *StoreBundle, d dispatcher.Dispatcher, logger *zap.Logger) *ServiceBundle {
	serviceLogger := &zapLoggerAdapter{logger: logger.Named("service")}
	guard := policy.NewGuard()
	engine := workflow.NewEngine(
		pricing.NewCalculator(cfg.DefaultTaxRate),
		workflow.WithPaymentTermsDays(cfg.PaymentTermsDays),
		workflow.WithValidityDays(cfg.ValidityDays),
	)

	return &ServiceBundle{
		Quotations: service.NewQuotationService(
			stores.Documents,
			stores.TxManager,
			stores.Audit,
			engine,
			guard,
			d,
			serviceLogger,
		),
		Catalog: service.NewCatalogService(stores.Documents, guard, serviceLogger),
	}
}

// ProvideWorkers creates the background workers.
func ProvideWorkers(cfg *WorkerConfig, stores *StoreBundle, deliverer worker.Deliverer, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.NotificationRetryEnabled {
		manager.Register(worker.NewNotificationRetryWorker(worker.RetryWorkerConfig{
			PollInterval: cfg.RetryPollInterval,
			BatchSize:    cfg.RetryBatchSize,
			MaxAttempts:  cfg.RetryMaxAttempts,
			SendTimeout:  cfg.RetrySendTimeout,
		}, stores.Notifications, deliverer, logger))
	}
	return manager
}

// ProvideHTTPServer creates the HTTP server.
func ProvideHTTPServer(cfg *Config, services *ServiceBundle, logger *zap.Logger) (*httpserver.Server, error) {
	resolver, err := auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	return httpserver.NewServer(
		httpserver.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		},
		services.Quotations,
		services.Catalog,
		resolver,
		export.NewXLSXExporter(cfg.Export.CompanyName, logger),
		&zapLoggerAdapter{logger: logger.Named("http")},
	), nil
}
