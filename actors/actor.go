// Package actors exposes one actor per entity kind. Each actor owns the
// single-writer store of its entities and the observers of their topics;
// notifications leave while the entity is still locked, so observers of
// one entity see changes in commit order.
package actors

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/runtime"
	"time"
)

type Clock interface {
	Now() time.Time
}

// observable subscribes observers to a fixed set of topics.
type observable struct {
	hub    *runtime.Hub
	topics []event.Topic
}

func (o observable) subscribe(entity string, observer runtime.ObserverID, sink contract.EventSink) {
	for _, topic := range o.topics {
		o.hub.Subscribe(entity, topic, observer, sink)
	}
}

func (o observable) unsubscribe(entity string, observer runtime.ObserverID) {
	for _, topic := range o.topics {
		o.hub.Unsubscribe(entity, topic, observer)
	}
}
