package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultObserverExpiry      = 5 * time.Minute
	DefaultObserverMaxFailures = 3
)

// ObserverID identifies one subscriber, typically a client session.
type ObserverID string

type subscription struct {
	sink        contract.EventSink
	lastRenewed time.Time
	failures    int
}

// Registry holds the observers of one topic on one entity.
// Observers must renew their subscription before it expires.
type Registry struct {
	mu          sync.Mutex
	log         *slog.Logger
	expiry      time.Duration
	maxFailures int
	now         func() time.Time
	observers   map[ObserverID]*subscription
}

func NewRegistry(log *slog.Logger, expiry time.Duration, maxFailures int) *Registry {
	if expiry <= 0 {
		expiry = DefaultObserverExpiry
	}
	if maxFailures <= 0 {
		maxFailures = DefaultObserverMaxFailures
	}
	return &Registry{
		log:         log,
		expiry:      expiry,
		maxFailures: maxFailures,
		now:         time.Now,
		observers:   make(map[ObserverID]*subscription),
	}
}

// Subscribe registers the sink, or renews it when the observer is already known.
func (r *Registry) Subscribe(id ObserverID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.observers[id]; ok {
		sub.sink = sink
		sub.lastRenewed = r.now()
		return
	}
	r.observers[id] = &subscription{sink: sink, lastRenewed: r.now()}
}

// Unsubscribe removes the observer. Unknown observers are ignored.
func (r *Registry) Unsubscribe(id ObserverID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Notify prunes expired observers then delivers evt to every live one.
// A failing observer never prevents delivery to the others; after
// maxFailures consecutive failures it is dropped.
// It returns the number of successful deliveries.
func (r *Registry) Notify(ctx context.Context, evt event.DomainEvent) int {
	targets := r.live()

	delivered := 0
	outcomes := make(map[ObserverID]error, len(targets))
	for id, sink := range targets {
		err := deliver(ctx, sink, evt)
		outcomes[id] = err
		if err == nil {
			delivered++
			observability.RecordNotification(string(evt.Topic()))
		}
	}
	r.record(outcomes)
	return delivered
}

func (r *Registry) live() map[ObserverID]contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	targets := make(map[ObserverID]contract.EventSink, len(r.observers))
	for id, sub := range r.observers {
		if now.Sub(sub.lastRenewed) > r.expiry {
			r.log.Debug("Observer expired", "observer_id", id)
			delete(r.observers, id)
			continue
		}
		targets[id] = sub.sink
	}
	return targets
}

// record applies delivery outcomes. Observers that unsubscribed during
// delivery are left out.
func (r *Registry) record(outcomes map[ObserverID]error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, err := range outcomes {
		sub, ok := r.observers[id]
		if !ok {
			continue
		}
		if err == nil {
			sub.failures = 0
			continue
		}
		sub.failures++
		r.log.Warn("Observer notification failed", "observer_id", id, "failures", sub.failures, "error", err)
		if sub.failures >= r.maxFailures {
			delete(r.observers, id)
			observability.ObserversDropped.Inc()
			r.log.Warn("Observer dropped", "observer_id", id)
		}
	}
}

func deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", errors.ErrObserverFailure, rec)
		}
	}()
	if err = sink.Consume(ctx, evt); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrObserverFailure, err)
	}
	return nil
}

type hubKey struct {
	entity string
	topic  event.Topic
}

// Hub owns the registries of every entity of one kind, keyed by
// (entity id, topic). Registries are created on first subscription and
// released once empty, after an unsubscription or a notification.
type Hub struct {
	mu          sync.Mutex
	log         *slog.Logger
	expiry      time.Duration
	maxFailures int
	registries  map[hubKey]*Registry
}

func NewHub(log *slog.Logger, expiry time.Duration, maxFailures int) *Hub {
	return &Hub{
		log:         log,
		expiry:      expiry,
		maxFailures: maxFailures,
		registries:  make(map[hubKey]*Registry),
	}
}

func (h *Hub) Subscribe(entity string, topic event.Topic, id ObserverID, sink contract.EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := hubKey{entity: entity, topic: topic}
	registry, ok := h.registries[key]
	if !ok {
		registry = NewRegistry(h.log, h.expiry, h.maxFailures)
		h.registries[key] = registry
	}
	registry.Subscribe(id, sink)
}

func (h *Hub) Unsubscribe(entity string, topic event.Topic, id ObserverID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := hubKey{entity: entity, topic: topic}
	registry, ok := h.registries[key]
	if !ok {
		return
	}
	registry.Unsubscribe(id)
	if registry.Count() == 0 {
		delete(h.registries, key)
	}
}

// Notify delivers evt to the observers of its topic on entity.
func (h *Hub) Notify(ctx context.Context, entity string, evt event.DomainEvent) int {
	key := hubKey{entity: entity, topic: evt.Topic()}
	h.mu.Lock()
	registry, ok := h.registries[key]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	delivered := registry.Notify(ctx, evt)

	// Expired and dropped observers may have emptied it.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.registries[key] == registry && registry.Count() == 0 {
		delete(h.registries, key)
	}
	return delivered
}

// Observers reports how many observers watch the topic on entity.
func (h *Hub) Observers(entity string, topic event.Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	registry, ok := h.registries[hubKey{entity: entity, topic: topic}]
	if !ok {
		return 0
	}
	return registry.Count()
}
