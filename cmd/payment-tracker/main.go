package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/httpserver"
	"github.com/mikey/payment-tracker/internal/adapters/mailbox"
	"github.com/mikey/payment-tracker/internal/config"
	"github.com/mikey/payment-tracker/internal/core"
	"github.com/mikey/payment-tracker/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	server *httpserver.Server,
	ingest *mailbox.SMTPIngest,
	sink core.PaymentSink,
) error {
	defer logger.Sync()

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
		return err
	}

	smtpEnabled := cfg.GetSMTP().Enabled
	if smtpEnabled {
		if err := ingest.Start(); err != nil {
			logger.Error("Failed to start SMTP ingest", zap.Error(err))
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	if smtpEnabled {
		if err := ingest.Stop(); err != nil {
			logger.Error("Failed to stop SMTP ingest", zap.Error(err))
		}
	}

	// Close the sink if needed
	if closer, ok := sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sink", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
