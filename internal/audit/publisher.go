package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher records the credential-lifecycle trail: issuance, holder
// decisions, affiliation and access responses, and verification verdicts.
// Persistence goes through Store so sinks can be swapped in tests.
type Publisher struct {
	store     Store
	events    chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
	async     bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer buffers events and persists them from a background
// goroutine, keeping ledger-facing request paths off the audit sink.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// drain persists buffered events until the channel is closed. A failed
// append is logged with the subject so the trail gap is traceable.
func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed",
				"error", err,
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
}

// Close flushes pending events and stops the background worker. Safe to
// call more than once.
func (p *Publisher) Close() {
	if !p.async || p.events == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.events)
		p.wg.Wait()
	})
}

// Emit records one event, stamping the time if the caller did not. In async
// mode a full buffer drops the event rather than stalling the operation
// being audited.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.async {
		select {
		case p.events <- event:
			return nil
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, event dropped",
					"action", event.Action,
					"subject", event.Subject,
				)
			}
			return nil
		}
	}
	return p.store.Append(ctx, event)
}

// List returns the recorded events involving the given user.
func (p *Publisher) List(ctx context.Context, userID string) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
