package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DedupWriter persists extracted payments into a sink, skipping records whose
// message ID is already present. One failing record never aborts the batch.
type DedupWriter struct {
	logger *zap.Logger
}

// NewDedupWriter creates a new deduplicating writer.
func NewDedupWriter(logger *zap.Logger) *DedupWriter {
	return &DedupWriter{logger: logger}
}

// WriteBatch writes the payments in input order. When the sink supports an
// atomic insert-if-absent it is preferred over the separate exists/append
// pair; the two-call sequence is only dedup-safe with a single writer.
func (w *DedupWriter) WriteBatch(ctx context.Context, payments []*Payment, sink PaymentSink) WriteResult {
	var result WriteResult

	inserter, atomic := sink.(ConditionalInserter)

	for _, payment := range payments {
		if atomic {
			w.insertConditional(ctx, inserter, payment, &result)
		} else {
			w.checkThenAppend(ctx, sink, payment, &result)
		}
	}

	if recomputer, ok := sink.(AggregateRecomputer); ok && len(payments) > 0 {
		if err := recomputer.RecomputeAggregates(ctx); err != nil {
			// Aggregates are derived state; failing to rebuild them does not
			// invalidate the records written above.
			w.logger.Error("Failed to recompute aggregates", zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("recompute aggregates: %v", err))
		}
	}

	w.logger.Info("Batch write complete",
		zap.Int("created", result.Created),
		zap.Int("skipped_duplicates", result.SkippedDuplicates),
		zap.Int("failed", result.Failed))

	return result
}

func (w *DedupWriter) insertConditional(ctx context.Context, sink ConditionalInserter, payment *Payment, result *WriteResult) {
	status, err := sink.InsertIfAbsent(ctx, payment)
	if err != nil {
		w.recordFailure(payment, err, result)
		return
	}
	switch status {
	case AlreadyExists:
		w.recordDuplicate(payment, result)
	default:
		result.Created++
	}
}

func (w *DedupWriter) checkThenAppend(ctx context.Context, sink PaymentSink, payment *Payment, result *WriteResult) {
	exists, err := sink.Exists(ctx, payment.MessageID)
	if err != nil {
		w.recordFailure(payment, fmt.Errorf("existence check: %w", err), result)
		return
	}
	if exists {
		w.recordDuplicate(payment, result)
		return
	}
	if err := sink.Append(ctx, payment); err != nil {
		w.recordFailure(payment, err, result)
		return
	}
	result.Created++
}

func (w *DedupWriter) recordDuplicate(payment *Payment, result *WriteResult) {
	result.SkippedDuplicates++
	w.logger.Debug("Skipping duplicate payment",
		zap.String("message_id", payment.MessageID),
		zap.String("service", string(payment.Service)))
}

func (w *DedupWriter) recordFailure(payment *Payment, err error, result *WriteResult) {
	result.Failed++
	result.Errors = append(result.Errors,
		fmt.Sprintf("failed to write %s (%s %s %s): %v",
			payment.MessageID, payment.Service, payment.Amount, payment.Currency, err))
	w.logger.Error("Failed to write payment record",
		zap.String("message_id", payment.MessageID),
		zap.Error(err))
}
