package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service identifies a known payment notification sender.
type Service string

const (
	ServiceWise    Service = "Wise"
	ServicePaypal  Service = "Paypal"
	ServiceRemitly Service = "Remitly"
	ServiceBillcom Service = "Billcom"
)

// RawEmail is one message pulled from a mailbox. Body holds the plain-text
// part when the message had one; HTMLBody holds the raw HTML alternative.
type RawEmail struct {
	MessageID  string
	From       string
	To         string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
}

// Payment is a normalized payment record extracted from exactly one RawEmail.
// It is immutable once created and identified by MessageID for dedup.
type Payment struct {
	Service     Service         `json:"service"`
	SenderName  string          `json:"sender"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	EmailDate   time.Time       `json:"date"`
	DaysAgo     string          `json:"days_ago"`
	Subject     string          `json:"subject"`
	MessageID   string          `json:"message_id"`
	FromEmail   string          `json:"from_email"`
	ToEmail     string          `json:"to_email"`
	ExtractedAt time.Time       `json:"extraction_timestamp"`
}

// Outcome is the result kind of a single extraction attempt.
type Outcome int

const (
	// OutcomeExtracted means a Payment was produced.
	OutcomeExtracted Outcome = iota
	// OutcomeNotRecognized means the sender matched no configured service.
	OutcomeNotRecognized
	// OutcomeUnparsed means the sender was recognized but no valid
	// amount/currency could be pulled out of the body.
	OutcomeUnparsed
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeNotRecognized:
		return "not_recognized"
	case OutcomeUnparsed:
		return "recognized_but_unparsed"
	default:
		return "unknown"
	}
}

// InsertStatus is the tagged result of an atomic insert-if-absent.
type InsertStatus int

const (
	Inserted InsertStatus = iota
	AlreadyExists
)

// WriteResult accumulates the per-record outcomes of one batch write.
type WriteResult struct {
	Created           int      `json:"created"`
	SkippedDuplicates int      `json:"skipped_duplicates"`
	Failed            int      `json:"failed"`
	Errors            []string `json:"errors,omitempty"`
}

// RunSummary is the result of one full batch run over a mailbox window.
type RunSummary struct {
	CandidateEmails   int             `json:"candidate_emails"`
	PaymentsProcessed int             `json:"payments_processed"`
	NotRecognized     int             `json:"not_recognized"`
	Unparsed          int             `json:"recognized_but_unparsed"`
	DatabaseResult    WriteResult     `json:"database_result"`
	Services          []string        `json:"services"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currencies        []string        `json:"currencies"`
}
