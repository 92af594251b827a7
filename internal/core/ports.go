package core

import (
	"context"
	"time"
)

// MailCollector defines the interface for fetching candidate emails from a mailbox
type MailCollector interface {
	// FetchCandidates returns all emails received since the given time whose
	// sender matches one of the allowlist patterns. Every returned RawEmail
	// carries a message ID that is unique within the mailbox.
	FetchCandidates(ctx context.Context, since time.Time, senders []string) ([]RawEmail, error)
}

// PaymentSink defines the interface for the persistence backend
type PaymentSink interface {
	// Exists reports whether a payment with the given message ID is already persisted
	Exists(ctx context.Context, messageID string) (bool, error)

	// Append persists a single payment record
	Append(ctx context.Context, payment *Payment) error
}

// ConditionalInserter is an optional sink capability that folds the
// exists-then-append pair into one atomic insert keyed on message ID.
// Sinks that can should implement it; the writer prefers it over the
// two-call sequence.
type ConditionalInserter interface {
	InsertIfAbsent(ctx context.Context, payment *Payment) (InsertStatus, error)
}

// AggregateRecomputer is an optional sink capability for rebuilding derived
// totals (per service, per month, per currency) from the full persisted set.
// Recomputation must be idempotent and independent of record order.
type AggregateRecomputer interface {
	RecomputeAggregates(ctx context.Context) error
}
