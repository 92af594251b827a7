package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/sink"
	"github.com/mikey/payment-tracker/internal/core"
)

// plainSink implements only Exists/Append, forcing the writer onto the
// check-then-append path.
type plainSink struct {
	records    map[string]*core.Payment
	appendErrs map[string]error
	existsErr  error
}

func newPlainSink() *plainSink {
	return &plainSink{
		records:    make(map[string]*core.Payment),
		appendErrs: make(map[string]error),
	}
}

func (s *plainSink) Exists(ctx context.Context, messageID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.records[messageID]
	return ok, nil
}

func (s *plainSink) Append(ctx context.Context, payment *core.Payment) error {
	if err := s.appendErrs[payment.MessageID]; err != nil {
		return err
	}
	s.records[payment.MessageID] = payment
	return nil
}

func makePayment(messageID, amount string) *core.Payment {
	return &core.Payment{
		Service:    core.ServiceWise,
		SenderName: "Jane Doe",
		Amount:     decimal.RequireFromString(amount),
		Currency:   "USD",
		EmailDate:  time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
		MessageID:  messageID,
	}
}

func TestWriteBatch_SecondRunSkipsEverything(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())
	mem := sink.NewMemorySink(zap.NewNop())

	payments := []*core.Payment{
		makePayment("a", "10.00"),
		makePayment("b", "20.00"),
		makePayment("c", "30.00"),
	}

	first := w.WriteBatch(context.Background(), payments, mem)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.SkippedDuplicates)
	assert.Equal(t, 0, first.Failed)

	second := w.WriteBatch(context.Background(), payments, mem)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.SkippedDuplicates)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, 3, mem.Len())
}

func TestWriteBatch_DuplicateWithinBatch(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())

	payments := []*core.Payment{
		makePayment("same", "10.00"),
		makePayment("same", "10.00"),
	}

	// A repeated message ID is a duplicate, not a failure, on both paths.
	mem := sink.NewMemorySink(zap.NewNop())
	result := w.WriteBatch(context.Background(), payments, mem)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.SkippedDuplicates)
	assert.Equal(t, 0, result.Failed)

	plain := newPlainSink()
	result = w.WriteBatch(context.Background(), payments, plain)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.SkippedDuplicates)
	assert.Equal(t, 0, result.Failed)
}

func TestWriteBatch_FailureDoesNotAbortBatch(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())

	plain := newPlainSink()
	plain.appendErrs["b"] = fmt.Errorf("disk full")

	payments := []*core.Payment{
		makePayment("a", "10.00"),
		makePayment("b", "20.00"),
		makePayment("c", "30.00"),
	}

	result := w.WriteBatch(context.Background(), payments, plain)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "b")
	assert.Contains(t, result.Errors[0], "disk full")
}

func TestWriteBatch_ExistenceCheckFailureCountsAsFailed(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())

	plain := newPlainSink()
	plain.existsErr = fmt.Errorf("connection reset")

	result := w.WriteBatch(context.Background(), []*core.Payment{makePayment("a", "1.00")}, plain)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "existence check")
}

func TestWriteBatch_RecomputesAggregates(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())
	mem := sink.NewMemorySink(zap.NewNop())

	payments := []*core.Payment{
		makePayment("a", "10.00"),
		makePayment("b", "20.00"),
	}

	w.WriteBatch(context.Background(), payments, mem)

	aggs := mem.Aggregates()
	require.Len(t, aggs, 1)
	agg := aggs[sink.AggregateKey{Service: "Wise", Month: "2025-08", Currency: "USD"}]
	assert.Equal(t, 2, agg.Count)
	assert.True(t, agg.Total.Equal(decimal.RequireFromString("30.00")), "total was %s", agg.Total)
}

func TestWriteBatch_EmptyBatchSkipsRecompute(t *testing.T) {
	w := core.NewDedupWriter(zap.NewNop())
	mem := sink.NewMemorySink(zap.NewNop())

	result := w.WriteBatch(context.Background(), nil, mem)
	assert.Equal(t, core.WriteResult{}, result)
	assert.Empty(t, mem.Aggregates())
}
