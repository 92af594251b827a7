package mailbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const retryAttempts = 3

var retryBaseDelay = time.Second

// withRetry runs fn with bounded exponential backoff. Retry lives here at the
// collaborator boundary; the extractor and writer never retry.
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		logger.Warn("Mailbox call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s: %w", op, err)
}
