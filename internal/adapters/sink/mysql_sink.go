package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/core"
)

// MySQLSink is a MySQL implementation of the PaymentSink interface
type MySQLSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLSink creates a new MySQL sink. The DSN must include parseTime=true.
func NewMySQLSink(dsn string, logger *zap.Logger) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			message_id VARCHAR(255) PRIMARY KEY,
			service VARCHAR(32) NOT NULL,
			sender_name VARCHAR(255),
			amount DECIMAL(18,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			email_date DATETIME,
			days_ago VARCHAR(32),
			subject TEXT,
			from_email VARCHAR(255),
			to_email VARCHAR(255),
			extracted_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create payments table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_totals (
			service VARCHAR(32) NOT NULL,
			month CHAR(7) NOT NULL,
			currency CHAR(3) NOT NULL,
			payment_count INT NOT NULL,
			total_amount DECIMAL(18,2) NOT NULL,
			PRIMARY KEY (service, month, currency)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create payment_totals table: %w", err)
	}

	return &MySQLSink{db: db, logger: logger}, nil
}

// Exists reports whether a payment with the message ID is persisted
func (s *MySQLSink) Exists(ctx context.Context, messageID string) (bool, error) {
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
func (s *MySQLSink) Append(ctx context.Context, payment *core.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (message_id, service, sender_name, amount, currency,
			email_date, days_ago, subject, from_email, to_email, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, payment.MessageID, string(payment.Service), payment.SenderName,
		payment.Amount.String(), payment.Currency,
		payment.EmailDate, payment.DaysAgo, payment.Subject,
		payment.FromEmail, payment.ToEmail, payment.ExtractedAt)

	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// InsertIfAbsent atomically inserts the payment unless its message ID is
// already present
func (s *MySQLSink) InsertIfAbsent(ctx context.Context, payment *core.Payment) (core.InsertStatus, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO payments (message_id, service, sender_name, amount, currency,
			email_date, days_ago, subject, from_email, to_email, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, payment.MessageID, string(payment.Service), payment.SenderName,
		payment.Amount.String(), payment.Currency,
		payment.EmailDate, payment.DaysAgo, payment.Subject,
		payment.FromEmail, payment.ToEmail, payment.ExtractedAt)

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

// RecomputeAggregates rebuilds payment_totals from the full payments table
// inside one transaction, with decimal arithmetic done in Go.
func (s *MySQLSink) RecomputeAggregates(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, DATE_FORMAT(email_date, '%Y-%m'), currency, CAST(amount AS CHAR)
		FROM payments
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

// Close closes the database connection
func (s *MySQLSink) Close() error {
	return s.db.Close()
}
