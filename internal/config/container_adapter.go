package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/sitequote/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	taxRate, err := decimal.NewFromString(c.Pricing.DefaultTaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid pricing.default_tax_rate %q: %w", c.Pricing.DefaultTaxRate, err)
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Pricing: container.PricingConfig{
			DefaultTaxRate:   taxRate,
			PaymentTermsDays: c.Pricing.PaymentTermsDays,
			ValidityDays:     c.Pricing.ValidityDays,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Lark: container.LarkConfig{
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			Recipients:    c.Lark.Recipients,
		},
		Notification: container.NotificationConfig{
			Transport: c.Notification.Transport,
		},
		Export: container.ExportConfig{
			CompanyName: c.Export.CompanyName,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Worker: container.WorkerConfig{
			NotificationRetryEnabled: c.Worker.NotificationRetryEnabled,
			RetryPollInterval:        c.Worker.PollInterval,
			RetryBatchSize:           c.Worker.BatchSize,
			RetryMaxAttempts:         c.Worker.MaxAttempts,
			RetrySendTimeout:         c.Worker.SendTimeout,
		},
	}, nil
}
