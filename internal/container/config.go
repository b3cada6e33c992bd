// Package container provides dependency injection and lifecycle management
// for the quotation workflow service.
package container

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Notification transports
const (
	TransportLog  = "log"
	TransportLark = "lark"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database     DatabaseConfig
	Pricing      PricingConfig
	Auth         AuthConfig
	Lark         LarkConfig
	Notification NotificationConfig
	Export       ExportConfig
	Server       ServerConfig
	Worker       WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the document store: sqlite or memory
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PricingConfig holds quotation pricing and lifecycle defaults.
type PricingConfig struct {
	// DefaultTaxRate applies when a quotation names no header rate
	DefaultTaxRate decimal.Decimal

	// PaymentTermsDays is the gap between invoice issue and due date
	PaymentTermsDays int

	// ValidityDays sets ValidUntil for quotations created from estimates
	ValidityDays int
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string
	Recipients    map[string]string
}

// NotificationConfig selects the notification transport.
type NotificationConfig struct {
	// Transport is log or lark
	Transport string
}

// ExportConfig holds spreadsheet export settings.
type ExportConfig struct {
	CompanyName string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	NotificationRetryEnabled bool
	RetryPollInterval        time.Duration
	RetryBatchSize           int
	RetryMaxAttempts         int
	RetrySendTimeout         time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/sitequote.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Pricing: PricingConfig{
			DefaultTaxRate:   decimal.RequireFromString("0.15"),
			PaymentTermsDays: 30,
			ValidityDays:     30,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Lark: LarkConfig{
			ReceiveIDType: "open_id",
		},
		Notification: NotificationConfig{
			Transport: TransportLog,
		},
		Export: ExportConfig{
			CompanyName: "SiteQuote",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			NotificationRetryEnabled: true,
			RetryPollInterval:        30 * time.Second,
			RetryBatchSize:           20,
			RetryMaxAttempts:         5,
			RetrySendTimeout:         10 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Database.Driver)
	}

	if c.Pricing.DefaultTaxRate.IsNegative() || c.Pricing.DefaultTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("pricing.default_tax_rate must be between 0 and 1")
	}
	if c.Pricing.PaymentTermsDays <= 0 {
		return fmt.Errorf("pricing.payment_terms_days must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Notification.Transport {
	case TransportLog:
	case TransportLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required for the lark transport")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required for the lark transport")
		}
	default:
		return fmt.Errorf("notification.transport must be %q or %q, got %q", TransportLog, TransportLark, c.Notification.Transport)
	}

	return nil
}
