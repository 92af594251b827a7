package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/mailbox"
	"github.com/mikey/payment-tracker/internal/adapters/sink"
	"github.com/mikey/payment-tracker/internal/core"
	"github.com/mikey/payment-tracker/internal/logging"
	"github.com/mikey/payment-tracker/internal/rules"
	"github.com/mikey/payment-tracker/internal/utils"
)

var (
	// Input flags
	inputFile = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog   = flag.Bool("json-log", false, "Output logs in JSON format")

	// Rule flags
	senderOverrides = flag.String("senders", "", "Comma-separated service=pattern sender overrides (e.g. wise=wise.com)")

	// Sink flags
	write      = flag.Bool("write", false, "Write the extracted payment to a sink")
	sinkType   = flag.String("sink-type", "sqlite", "Sink type when -write is set (sqlite, memory)")
	sqlitePath = flag.String("sqlite-path", "payments.db", "SQLite database path when -sink-type=sqlite")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	table := rules.WithSenders(rules.Default(), parseOverrides(*senderOverrides))
	extractor := core.NewExtractor(table, utils.NewTextProcessor(logger), logger)

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	raw, err := mailbox.ParseRFC822(emailReader)
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", raw.From)
	fmt.Printf("To: %s\n", raw.To)
	fmt.Printf("Subject: %s\n", raw.Subject)
	fmt.Printf("Message-Id: %s\n", raw.MessageID)
	fmt.Printf("Body length: %d bytes\n", len(raw.Body)+len(raw.HTMLBody))
	fmt.Printf("\n")

	payment, outcome := extractor.Extract(raw)

	fmt.Printf("=== Results ===\n")
	fmt.Printf("Outcome: %s\n", outcome)
	if outcome != core.OutcomeExtracted {
		return
	}

	fmt.Printf("Service: %s\n", payment.Service)
	fmt.Printf("Sender: %s\n", payment.SenderName)
	fmt.Printf("Amount: %s %s\n", payment.Amount, payment.Currency)
	fmt.Printf("Date: %s (%s)\n", payment.EmailDate.Format("2006-01-02"), payment.DaysAgo)

	if !*write {
		return
	}

	target, err := createSink(logger)
	if err != nil {
		logger.Fatal("Failed to create sink", zap.Error(err))
	}

	writer := core.NewDedupWriter(logger)
	result := writer.WriteBatch(context.Background(), []*core.Payment{payment}, target)

	fmt.Printf("\n=== Write Result ===\n")
	fmt.Printf("Created: %d, skipped duplicates: %d, failed: %d\n",
		result.Created, result.SkippedDuplicates, result.Failed)
	for _, msg := range result.Errors {
		fmt.Printf("Error: %s\n", msg)
	}

	if closer, ok := target.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sink", zap.Error(err))
		}
	}
}

func createSink(logger *zap.Logger) (core.PaymentSink, error) {
	switch *sinkType {
	case "memory":
		return sink.NewMemorySink(logger), nil
	case "sqlite":
		return sink.NewSQLiteSink(*sqlitePath, logger)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", *sinkType)
	}
}

func parseOverrides(arg string) map[string]string {
	overrides := make(map[string]string)
	for _, pair := range strings.Split(arg, ",") {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		overrides[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	return overrides
}
