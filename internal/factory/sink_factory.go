package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/sink"
	"github.com/mikey/payment-tracker/internal/config"
	"github.com/mikey/payment-tracker/internal/core"
)

// SinkFactory creates payment sinks based on configuration
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSink creates a payment sink based on the configuration
func (f *SinkFactory) CreateSink() (core.PaymentSink, error) {
	sinkCfg := f.cfg.GetSink()

	switch sinkCfg.Type {
	case "memory":
		return sink.NewMemorySink(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sinkCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return sink.NewSQLiteSink(sinkCfg.SQLitePath, f.logger)
	case "mysql":
		return sink.NewMySQLSink(sinkCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sinkCfg.Type)
	}
}
