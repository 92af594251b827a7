package sink_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/sink"
	"github.com/mikey/payment-tracker/internal/core"
)

func newTestSQLiteSink(t *testing.T) *sink.SQLiteSink {
	t.Helper()
	s, err := sink.NewSQLiteSink(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSink_AppendAndExists(t *testing.T) {
	s := newTestSQLiteSink(t)
	ctx := context.Background()

	p := payment("m1", core.ServiceWise, "100.50", "USD",
		time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC))
	p.SenderName = "Jane Doe"
	p.DaysAgo = "2 days ago"

	exists, err := s.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Append(ctx, p))

	exists, err = s.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteSink_InsertIfAbsent(t *testing.T) {
	s := newTestSQLiteSink(t)
	ctx := context.Background()

	p := payment("m1", core.ServiceWise, "100.50", "USD", time.Now().UTC())

	status, err := s.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, core.Inserted, status)

	status, err = s.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, core.AlreadyExists, status)
}

func TestSQLiteSink_RecomputeAggregates(t *testing.T) {
	s := newTestSQLiteSink(t)
	ctx := context.Background()
	aug := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)

	payments := []*core.Payment{
		payment("a", core.ServiceWise, "10.00", "USD", aug),
		payment("b", core.ServiceWise, "20.50", "USD", aug),
		payment("c", core.ServicePaypal, "7.25", "USD", aug),
	}
	for _, p := range payments {
		status, err := s.InsertIfAbsent(ctx, p)
		require.NoError(t, err)
		require.Equal(t, core.Inserted, status)
	}

	require.NoError(t, s.RecomputeAggregates(ctx))
	// A second rebuild over unchanged records must be a no-op.
	require.NoError(t, s.RecomputeAggregates(ctx))

	totals, err := s.ReadAggregates(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	wise := totals[sink.AggregateKey{Service: "Wise", Month: "2025-08", Currency: "USD"}]
	assert.Equal(t, 2, wise.Count)
	assert.True(t, wise.Total.Equal(decimal.RequireFromString("30.50")), "total was %s", wise.Total)

	paypal := totals[sink.AggregateKey{Service: "Paypal", Month: "2025-08", Currency: "USD"}]
	assert.Equal(t, 1, paypal.Count)
	assert.True(t, paypal.Total.Equal(decimal.RequireFromString("7.25")))
}
