package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/mailbox"
	"github.com/mikey/payment-tracker/internal/config"
	"github.com/mikey/payment-tracker/internal/core"
)

// CollectorFactory creates mail collectors based on configuration
type CollectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCollectorFactory creates a new collector factory
func NewCollectorFactory(cfg *config.Config, logger *zap.Logger) *CollectorFactory {
	return &CollectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCollector creates the mail collector. Gmail is the only pull source;
// the SMTP ingest server is a push path wired separately. The Gmail client is
// built lazily on the first fetch so the daemon starts without credentials
// and missing ones surface as a batch error, not a startup crash.
func (f *CollectorFactory) CreateCollector() core.MailCollector {
	return mailbox.NewLazyCollector(func(ctx context.Context) (core.MailCollector, error) {
		collector, err := mailbox.NewGmailCollector(ctx, f.cfg.GetGmail(), f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail collector: %w", err)
		}
		return collector, nil
	})
}
