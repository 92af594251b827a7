package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/payment-tracker/internal/core"
)

// LazyCollector defers building the underlying collector until the first
// fetch. The daemon's HTTP surface must come up even when mailbox
// credentials are missing; only a real batch run may fail on them.
type LazyCollector struct {
	mu        sync.Mutex
	collector core.MailCollector
	build     func(ctx context.Context) (core.MailCollector, error)
}

// NewLazyCollector wraps a collector constructor.
func NewLazyCollector(build func(ctx context.Context) (core.MailCollector, error)) *LazyCollector {
	return &LazyCollector{build: build}
}

// FetchCandidates builds the collector on first use and delegates to it.
// A failed build is not cached, so fixing the credentials does not require
// a restart.
func (l *LazyCollector) FetchCandidates(ctx context.Context, since time.Time, senders []string) ([]core.RawEmail, error) {
	collector, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return collector.FetchCandidates(ctx, since, senders)
}

func (l *LazyCollector) get(ctx context.Context) (core.MailCollector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.collector == nil {
		collector, err := l.build(ctx)
		if err != nil {
			return nil, err
		}
		l.collector = collector
	}
	return l.collector, nil
}
