package actors

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type MessageActor struct {
	observable
	log   *slog.Logger
	store *runtime.Store[domain.Message]
	clock Clock
}

func NewMessageActor(log *slog.Logger, store *runtime.Store[domain.Message], hub *runtime.Hub, clock Clock) *MessageActor {
	return &MessageActor{
		observable: observable{hub: hub, topics: event.MessageTopics},
		log:        log,
		store:      store,
		clock:      clock,
	}
}

// Author records a message exactly once. The timestamp is assigned by the
// caller from the server clock, never by the client.
func (a *MessageActor) Author(ctx context.Context, id domain.MessageID, sender domain.UserID,
	timestamp time.Time, payload []byte, media *domain.Media) (domain.Message, error) {
	message := domain.Message{
		ID:            id,
		Sender:        sender,
		Timestamp:     timestamp,
		EncryptedText: payload,
		Media:         media,
	}
	created, err := a.store.Create(ctx, string(id), message, func(m domain.Message) {
		a.notify(ctx, event.MessageConfirmed{Message: m.ID, Sender: m.Sender, Timestamp: m.Timestamp})
	})
	if errors.Is(err, errors.ErrAlreadyExists) {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrAlreadyAuthored)
	}
	return created, err
}

// SetMediaReference attaches media to an authored message.
func (a *MessageActor) SetMediaReference(ctx context.Context, id domain.MessageID, media domain.Media) error {
	_, err := a.store.Mutate(ctx, string(id), func(m *domain.Message) error {
		return m.AttachMedia(media)
	}, func(m domain.Message) {
		a.notify(ctx, event.MediaAttached{Message: m.ID, Media: *m.Media, At: a.clock.Now()})
	})
	if errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("%w: %w", errors.ErrNotAuthored, err)
	}
	return err
}

func (a *MessageActor) Get(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	return a.store.Read(ctx, string(id))
}

func (a *MessageActor) Sender(ctx context.Context, id domain.MessageID) (domain.UserID, error) {
	m, err := a.Get(ctx, id)
	return m.Sender, err
}

func (a *MessageActor) Timestamp(ctx context.Context, id domain.MessageID) (time.Time, error) {
	m, err := a.Get(ctx, id)
	return m.Timestamp, err
}

func (a *MessageActor) EncryptedTextData(ctx context.Context, id domain.MessageID) ([]byte, error) {
	m, err := a.Get(ctx, id)
	return m.EncryptedText, err
}

func (a *MessageActor) MediaReference(ctx context.Context, id domain.MessageID) (*domain.Media, error) {
	m, err := a.Get(ctx, id)
	return m.Media, err
}

// Subscribe registers the observer on the media and confirmation topics.
func (a *MessageActor) Subscribe(id domain.MessageID, observer runtime.ObserverID, sink contract.EventSink) {
	a.subscribe(string(id), observer, sink)
}

func (a *MessageActor) Unsubscribe(id domain.MessageID, observer runtime.ObserverID) {
	a.unsubscribe(string(id), observer)
}

func (a *MessageActor) notify(ctx context.Context, evt event.DomainEvent) {
	delivered := a.hub.Notify(ctx, evt.EntityID(), evt)
	a.log.Debug("Message notification", "message_id", evt.EntityID(), "change", evt.Change(), "delivered", delivered)
}
