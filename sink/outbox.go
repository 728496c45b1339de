package sink

import (
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"log/slog"
	"sync"
)

// Outbox is the ordered delivery queue of one client session.
// Subscription callbacks enqueue through Consume and never block on the
// network; the transport loop drains the whole queue at once.
// Once the queue holds limit events the session is considered too slow:
// further events are refused and the next Drain reports ErrOutboxOverflow.
type Outbox struct {
	mu         sync.Mutex
	log        *slog.Logger
	events     []event.DomainEvent
	limit      int
	closed     bool
	overflowed bool
	ready      chan struct{}
}

// NewOutbox builds a queue holding at most limit events, unbounded when limit <= 0.
func NewOutbox(log *slog.Logger, limit int) *Outbox {
	return &Outbox{
		log:   log,
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Consume implements the EventSink interface.
func (o *Outbox) Consume(_ context.Context, e event.DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errors.ErrTransportClosed
	}
	if o.overflowed || (o.limit > 0 && len(o.events) >= o.limit) {
		if !o.overflowed {
			o.log.Warn("Delivery queue limit reached, disconnecting", "limit", o.limit)
		}
		o.overflowed = true
		o.signal()
		return errors.ErrOutboxOverflow
	}
	o.events = append(o.events, e)
	observability.OutboxQueuedEvents.Inc()
	o.signal()
	return nil
}

// Drain hands over every queued event, oldest first.
func (o *Outbox) Drain() ([]event.DomainEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.overflowed {
		return nil, errors.ErrOutboxOverflow
	}
	events := o.events
	o.events = nil
	observability.OutboxQueuedEvents.Sub(float64(len(events)))
	return events, nil
}

// Ready fires after at least one event was enqueued since the last signal.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Close refuses any further event and discards what is left.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	observability.OutboxQueuedEvents.Sub(float64(len(o.events)))
	o.events = nil
}

func (o *Outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
