package mailbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/core"
)

// SMTPIngest is an optional push-style ingestion path: an SMTP server that
// accepts payment notification emails directly and runs each one through the
// extractor and deduplicating writer as it arrives. The Gmail batch and the
// SMTP path share the same sink, so the message-id dedup holds across both.
type SMTPIngest struct {
	service    *core.TrackerService
	logger     *zap.Logger
	listenAddr string
	maxBytes   int64
	server     *smtp.Server
}

// NewSMTPIngest creates a new SMTP ingest server
func NewSMTPIngest(service *core.TrackerService, logger *zap.Logger, listenAddr string, maxBytes int64) *SMTPIngest {
	return &SMTPIngest{
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
		maxBytes:   maxBytes,
	}
}

// Start starts the SMTP server
func (i *SMTPIngest) Start() error {
	i.server = smtp.NewServer(&ingestBackend{ingest: i})

	i.server.Addr = i.listenAddr
	i.server.Domain = "localhost"
	i.server.ReadTimeout = 30 * time.Second
	i.server.WriteTimeout = 30 * time.Second
	i.server.MaxMessageBytes = i.maxBytes
	i.server.MaxRecipients = 10
	i.server.AllowInsecureAuth = true

	i.logger.Info("SMTP ingest starting", zap.String("address", i.listenAddr))

	go func() {
		if err := i.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				i.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server
func (i *SMTPIngest) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// handleMessage parses one delivered message and pushes it through the
// extraction pipeline.
func (i *SMTPIngest) handleMessage(data []byte) {
	raw, err := ParseRFC822(bytes.NewReader(data))
	if err != nil {
		i.logger.Warn("Failed to parse delivered message", zap.Error(err))
		return
	}

	// SMTP delivery does not guarantee a Message-Id header; hash the raw
	// message so re-delivery still dedups.
	if raw.MessageID == "" {
		sum := sha256.Sum256(data)
		raw.MessageID = hex.EncodeToString(sum[:16])
	}
	if raw.ReceivedAt.IsZero() {
		raw.ReceivedAt = time.Now()
	}

	outcome, result := i.service.ProcessOne(context.Background(), raw)
	i.logger.Info("Processed delivered message",
		zap.String("message_id", raw.MessageID),
		zap.String("outcome", outcome.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped_duplicates", result.SkippedDuplicates),
		zap.Int("failed", result.Failed))
}

// ingestBackend implements the go-smtp Backend interface
type ingestBackend struct {
	ingest *SMTPIngest
}

// NewSession creates a new SMTP session
func (b *ingestBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &ingestSession{ingest: b.ingest}, nil
}

// ingestSession implements the go-smtp Session interface
type ingestSession struct {
	ingest *SMTPIngest
	sender string
}

// Reset resets the session state
func (s *ingestSession) Reset() {
	s.sender = ""
}

// Logout handles session termination
func (s *ingestSession) Logout() error {
	return nil
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *ingestSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *ingestSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt accepts any recipient; delivery targets are not our concern
func (s *ingestSession) Rcpt(_ string, _ *smtp.RcptOptions) error {
	return nil
}

// Data handles the email data
func (s *ingestSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.ingest.handleMessage(data)
	return nil
}
