package di

import (
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/httpserver"
	"github.com/mikey/payment-tracker/internal/adapters/mailbox"
	"github.com/mikey/payment-tracker/internal/config"
	"github.com/mikey/payment-tracker/internal/core"
	"github.com/mikey/payment-tracker/internal/factory"
	"github.com/mikey/payment-tracker/internal/logging"
	"github.com/mikey/payment-tracker/internal/rules"
	"github.com/mikey/payment-tracker/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register the rule table with config sender overrides applied
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) []core.ServiceRule {
		table := rules.WithSenders(rules.Default(), cfg.GetExtraction().Senders)
		logger.Info("Loaded service rules", zap.Strings("senders", rules.SenderPatterns(table)))
		return table
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewSinkFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCollectorFactory); err != nil {
		return nil, err
	}

	// Register payment sink
	if err := container.Provide(func(f *factory.SinkFactory) (core.PaymentSink, error) {
		return f.CreateSink()
	}); err != nil {
		return nil, err
	}

	// Register mail collector
	if err := container.Provide(func(f *factory.CollectorFactory) core.MailCollector {
		return f.CreateCollector()
	}); err != nil {
		return nil, err
	}

	// Register core components
	if err := container.Provide(core.NewExtractor); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewDedupWriter); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		collector core.MailCollector,
		extractor *core.Extractor,
		writer *core.DedupWriter,
		sink core.PaymentSink,
		logger *zap.Logger,
		cfg *config.Config,
		table []core.ServiceRule,
	) *core.TrackerService {
		return core.NewTrackerService(collector, extractor, writer, sink, logger,
			cfg.GetExtraction().DaysBack, rules.SenderPatterns(table))
	}); err != nil {
		return nil, err
	}

	// Register HTTP trigger server
	if err := container.Provide(func(svc *core.TrackerService, logger *zap.Logger, cfg *config.Config) *httpserver.Server {
		serverCfg := cfg.GetServer()
		return httpserver.NewServer(svc, logger, serverCfg.ListenAddress,
			serverCfg.ReadTimeout, serverCfg.WriteTimeout, configLoaded(cfg))
	}); err != nil {
		return nil, err
	}

	// Register SMTP ingest server
	if err := container.Provide(func(svc *core.TrackerService, logger *zap.Logger, cfg *config.Config) *mailbox.SMTPIngest {
		smtpCfg := cfg.GetSMTP()
		return mailbox.NewSMTPIngest(svc, logger, smtpCfg.ListenAddress, int64(smtpCfg.MaxMessageBytes))
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// configLoaded reports whether the pieces a real run needs are all present.
// Used by the test-flag trigger response.
func configLoaded(cfg *config.Config) bool {
	gmail := cfg.GetGmail()
	if _, err := os.Stat(gmail.CredentialsFile); err != nil {
		return false
	}
	if _, err := os.Stat(gmail.TokenFile); err != nil {
		return false
	}
	return cfg.GetSink().Type != ""
}
