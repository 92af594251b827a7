package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TrackerService runs one bounded batch: fetch candidate emails, extract
// payments, write them through the deduplicating writer and summarize.
// Batches are single-threaded; concurrent batches against the same sink are
// not supported.
type TrackerService struct {
	collector MailCollector
	extractor *Extractor
	writer    *DedupWriter
	sink      PaymentSink
	logger    *zap.Logger
	daysBack  int
	allowlist []string
}

// NewTrackerService creates a new tracker service.
func NewTrackerService(
	collector MailCollector,
	extractor *Extractor,
	writer *DedupWriter,
	sink PaymentSink,
	logger *zap.Logger,
	daysBack int,
	allowlist []string,
) *TrackerService {
	return &TrackerService{
		collector: collector,
		extractor: extractor,
		writer:    writer,
		sink:      sink,
		logger:    logger,
		daysBack:  daysBack,
		allowlist: allowlist,
	}
}

// Run processes one batch to completion. Collector failure is batch-fatal;
// per-record extraction and write failures are tallied in the summary.
func (s *TrackerService) Run(ctx context.Context) (*RunSummary, error) {
	since := time.Now().AddDate(0, 0, -s.daysBack)
	s.logger.Info("Starting payment extraction batch",
		zap.Time("since", since),
		zap.Strings("senders", s.allowlist))

	emails, err := s.collector.FetchCandidates(ctx, since, s.allowlist)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate emails: %w", err)
	}

	summary := &RunSummary{
		CandidateEmails: len(emails),
		TotalAmount:     decimal.Zero,
		Services:        []string{},
		Currencies:      []string{},
	}

	if len(emails) == 0 {
		s.logger.Info("No candidate emails to process")
		return summary, nil
	}

	var payments []*Payment
	for i := range emails {
		payment, outcome := s.extractor.Extract(&emails[i])
		switch outcome {
		case OutcomeExtracted:
			payments = append(payments, payment)
		case OutcomeNotRecognized:
			summary.NotRecognized++
		case OutcomeUnparsed:
			summary.Unparsed++
		}
	}

	summary.PaymentsProcessed = len(payments)
	summary.DatabaseResult = s.writer.WriteBatch(ctx, payments, s.sink)

	services := make(map[string]struct{})
	currencies := make(map[string]struct{})
	for _, p := range payments {
		services[string(p.Service)] = struct{}{}
		currencies[p.Currency] = struct{}{}
		summary.TotalAmount = summary.TotalAmount.Add(p.Amount)
	}
	summary.Services = sortedKeys(services)
	summary.Currencies = sortedKeys(currencies)

	s.logger.Info("Batch complete",
		zap.Int("candidates", summary.CandidateEmails),
		zap.Int("payments", summary.PaymentsProcessed),
		zap.Int("not_recognized", summary.NotRecognized),
		zap.Int("unparsed", summary.Unparsed),
		zap.Int("created", summary.DatabaseResult.Created),
		zap.Int("skipped_duplicates", summary.DatabaseResult.SkippedDuplicates),
		zap.Int("failed", summary.DatabaseResult.Failed))

	return summary, nil
}

// ProcessOne extracts a single email and, when it yields a payment, writes it
// through the deduplicating writer. Used by the SMTP ingest path.
func (s *TrackerService) ProcessOne(ctx context.Context, raw *RawEmail) (Outcome, WriteResult) {
	payment, outcome := s.extractor.Extract(raw)
	if outcome != OutcomeExtracted {
		return outcome, WriteResult{}
	}
	return outcome, s.writer.WriteBatch(ctx, []*Payment{payment}, s.sink)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
