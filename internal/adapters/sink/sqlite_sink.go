package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/core"
)

// SQLiteSink is a SQLite implementation of the PaymentSink interface
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSink creates a new SQLite sink
func NewSQLiteSink(dbPath string, logger *zap.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			message_id TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			sender_name TEXT,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			email_date TIMESTAMP,
			days_ago TEXT,
			subject TEXT,
			from_email TEXT,
			to_email TEXT,
			extracted_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create payments table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_totals (
			service TEXT NOT NULL,
			month TEXT NOT NULL,
			currency TEXT NOT NULL,
			payment_count INTEGER NOT NULL,
			total_amount TEXT NOT NULL,
			PRIMARY KEY (service, month, currency)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create payment_totals table: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger}, nil
}

// Exists reports whether a payment with the message ID is persisted
func (s *SQLiteSink) Exists(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM payments WHERE message_id = ?
	`, messageID).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query payments: %w", err)
	}
	return true, nil
}

// Append persists a single payment record
func (s *SQLiteSink) Append(ctx context.Context, payment *core.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (message_id, service, sender_name, amount, currency,
			email_date, days_ago, subject, from_email, to_email, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, payment.MessageID, string(payment.Service), payment.SenderName,
		payment.Amount.String(), payment.Currency,
		payment.EmailDate.Format(time.RFC3339), payment.DaysAgo, payment.Subject,
		payment.FromEmail, payment.ToEmail, payment.ExtractedAt.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// InsertIfAbsent atomically inserts the payment unless its message ID is
// already present. INSERT OR IGNORE makes the check-then-act race of the
// separate exists/append pair impossible.
func (s *SQLiteSink) InsertIfAbsent(ctx context.Context, payment *core.Payment) (core.InsertStatus, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO payments (message_id, service, sender_name, amount, currency,
			email_date, days_ago, subject, from_email, to_email, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, payment.MessageID, string(payment.Service), payment.SenderName,
		payment.Amount.String(), payment.Currency,
		payment.EmailDate.Format(time.RFC3339), payment.DaysAgo, payment.Subject,
		payment.FromEmail, payment.ToEmail, payment.ExtractedAt.Format(time.RFC3339))

	if err != nil {
		return core.AlreadyExists, fmt.Errorf("failed to insert payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return core.AlreadyExists, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return core.AlreadyExists, nil
	}
	return core.Inserted, nil
}

// RecomputeAggregates rebuilds payment_totals from the full payments table.
// The totals are recomputed in Go with decimal arithmetic rather than
// SUM(CAST(...)) so repeated runs produce byte-identical rows.
func (s *SQLiteSink) RecomputeAggregates(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, substr(email_date, 1, 7), currency, amount FROM payments
	`)
	if err != nil {
		return fmt.Errorf("failed to read payments for aggregation: %w", err)
	}
	defer rows.Close()

	totals := make(map[AggregateKey]Aggregate)
	for rows.Next() {
		var key AggregateKey
		var amountText string
		if err := rows.Scan(&key.Service, &key.Month, &key.Currency, &amountText); err != nil {
			return fmt.Errorf("failed to scan payment row: %w", err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return fmt.Errorf("stored amount %q is not decimal: %w", amountText, err)
		}
		agg := totals[key]
		agg.Count++
		agg.Total = agg.Total.Add(amount)
		totals[key] = agg
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate payments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin aggregate rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_totals`); err != nil {
		return fmt.Errorf("failed to clear payment_totals: %w", err)
	}
	for key, agg := range totals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_totals (service, month, currency, payment_count, total_amount)
			VALUES (?, ?, ?, ?, ?)
		`, key.Service, key.Month, key.Currency, agg.Count, agg.Total.String())
		if err != nil {
			return fmt.Errorf("failed to write payment_totals row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregate rebuild: %w", err)
	}

	s.logger.Debug("Recomputed aggregates", zap.Int("buckets", len(totals)))
	return nil
}

// ReadAggregates returns the persisted payment_totals rows keyed by bucket.
func (s *SQLiteSink) ReadAggregates(ctx context.Context) (map[AggregateKey]Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, month, currency, payment_count, total_amount FROM payment_totals
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment_totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[AggregateKey]Aggregate)
	for rows.Next() {
		var key AggregateKey
		var agg Aggregate
		var totalText string
		if err := rows.Scan(&key.Service, &key.Month, &key.Currency, &agg.Count, &totalText); err != nil {
			return nil, fmt.Errorf("failed to scan payment_totals row: %w", err)
		}
		agg.Total, err = decimal.NewFromString(totalText)
		if err != nil {
			return nil, fmt.Errorf("stored total %q is not decimal: %w", totalText, err)
		}
		totals[key] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment_totals: %w", err)
	}
	return totals, nil
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
