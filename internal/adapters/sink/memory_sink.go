package sink

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/core"
)

// AggregateKey identifies one derived totals bucket.
type AggregateKey struct {
	Service  string
	Month    string // YYYY-MM of the email date
	Currency string
}

// Aggregate holds the derived totals for one bucket.
type Aggregate struct {
	Count int
	Total decimal.Decimal
}

// MemorySink is an in-memory implementation of the PaymentSink interface,
// used for tests and local development.
type MemorySink struct {
	mu         sync.RWMutex
	records    map[string]*core.Payment
	aggregates map[AggregateKey]Aggregate
	logger     *zap.Logger
}

// NewMemorySink creates a new in-memory sink
func NewMemorySink(logger *zap.Logger) *MemorySink {
	return &MemorySink{
		records:    make(map[string]*core.Payment),
		aggregates: make(map[AggregateKey]Aggregate),
		logger:     logger,
	}
}

// Exists reports whether a payment with the message ID is persisted
func (s *MemorySink) Exists(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[messageID]
	return ok, nil
}

// Append persists a single payment record
func (s *MemorySink) Append(ctx context.Context, payment *core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[payment.MessageID] = payment
	return nil
}

// InsertIfAbsent atomically inserts the payment unless its message ID is
// already present
func (s *MemorySink) InsertIfAbsent(ctx context.Context, payment *core.Payment) (core.InsertStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[payment.MessageID]; ok {
		return core.AlreadyExists, nil
	}
	s.records[payment.MessageID] = payment
	return core.Inserted, nil
}

// RecomputeAggregates rebuilds the per service/month/currency totals from
// the full record set. The rebuild is a pure function of the stored records,
// so repeating it or reordering inserts cannot change the outcome.
func (s *MemorySink) RecomputeAggregates(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	aggregates := make(map[AggregateKey]Aggregate)
	for _, p := range s.records {
		key := AggregateKey{
			Service:  string(p.Service),
			Month:    p.EmailDate.Format("2006-01"),
			Currency: p.Currency,
		}
		agg := aggregates[key]
		agg.Count++
		agg.Total = agg.Total.Add(p.Amount)
		aggregates[key] = agg
	}
	s.aggregates = aggregates

	s.logger.Debug("Recomputed aggregates",
		zap.Int("records", len(s.records)),
		zap.Int("buckets", len(aggregates)))
	return nil
}

// Aggregates returns a copy of the current derived totals
func (s *MemorySink) Aggregates() map[AggregateKey]Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[AggregateKey]Aggregate, len(s.aggregates))
	for k, v := range s.aggregates {
		out[k] = v
	}
	return out
}

// Len returns the number of persisted records
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
