// Package session keeps a connected client's subscriptions in line with
// its memberships and forwards every observed change to its connection.
package session

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/runtime"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type UserSource interface {
	Conversations(ctx context.Context, id domain.UserID) ([]domain.ConversationID, error)
	Subscribe(id domain.UserID, observer runtime.ObserverID, sink contract.EventSink)
	Unsubscribe(id domain.UserID, observer runtime.ObserverID)
}

type ConversationSource interface {
	MessageIDs(ctx context.Context, id domain.ConversationID) ([]domain.MessageID, error)
	Subscribe(id domain.ConversationID, observer runtime.ObserverID, sink contract.EventSink)
	Unsubscribe(id domain.ConversationID, observer runtime.ObserverID)
}

type MessageSource interface {
	Subscribe(id domain.MessageID, observer runtime.ObserverID, sink contract.EventSink)
	Unsubscribe(id domain.MessageID, observer runtime.ObserverID)
}

// Synchronizer is the observer of one session. It holds one subscription
// per conversation the user belongs to and per message of those
// conversations, and relays every notification to the delivery queue.
//
// Lock order: the synchronizer mutex is never held while reading an entity,
// because its Consume runs under entity locks.
type Synchronizer struct {
	log           *slog.Logger
	user          domain.UserID
	observer      runtime.ObserverID
	users         UserSource
	conversations ConversationSource
	messages      MessageSource
	outbox        contract.EventSink
	renewEvery    time.Duration
	now           func() time.Time

	mu          sync.Mutex
	closed      bool
	tracked     map[domain.ConversationID]struct{}
	messageOf   map[domain.MessageID]domain.ConversationID
	lastRenewed time.Time
	wake        chan struct{}
}

func NewSynchronizer(log *slog.Logger, user domain.UserID, users UserSource, conversations ConversationSource,
	messages MessageSource, outbox contract.EventSink, renewEvery time.Duration) *Synchronizer {
	observer := runtime.ObserverID(uuid.NewString())
	return &Synchronizer{
		log:           log.With("user_id", user, "observer_id", observer),
		user:          user,
		observer:      observer,
		users:         users,
		conversations: conversations,
		messages:      messages,
		outbox:        outbox,
		renewEvery:    renewEvery,
		now:           time.Now,
		tracked:       make(map[domain.ConversationID]struct{}),
		messageOf:     make(map[domain.MessageID]domain.ConversationID),
		wake:          make(chan struct{}, 1),
	}
}

func (s *Synchronizer) ObserverID() runtime.ObserverID {
	return s.observer
}

// Wake fires when the user's own conversation set changed.
func (s *Synchronizer) Wake() <-chan struct{} {
	return s.wake
}

// Start subscribes to the user's own topics then runs a first reconciliation.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrTransportClosed
	}
	s.users.Subscribe(s.user, s.observer, s)
	s.mu.Unlock()
	return s.Reconcile(ctx)
}

// Reconcile restores: subscribed conversations == conversations of the user.
// New conversations get their five topics then the topics of every message
// they already hold; left conversations are released with their messages.
func (s *Synchronizer) Reconcile(ctx context.Context) error {
	current, err := s.users.Conversations(ctx, s.user)
	if err != nil {
		observability.RecordReconciliation("error")
		return err
	}
	wanted := lo.Keyify(current)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrTransportClosed
	}
	var added []domain.ConversationID
	for id := range wanted {
		if _, ok := s.tracked[id]; !ok {
			added = append(added, id)
			s.tracked[id] = struct{}{}
			// Conversation topics first: messages posted from now on arrive as events.
			s.conversations.Subscribe(id, s.observer, s)
		}
	}
	var removed []domain.ConversationID
	for id := range s.tracked {
		if _, ok := wanted[id]; !ok {
			removed = append(removed, id)
			s.release(id)
		}
	}
	s.renewIfDue()
	s.mu.Unlock()

	for _, id := range added {
		ids, err := s.conversations.MessageIDs(ctx, id)
		if err != nil {
			s.log.Warn("Reading messages of a new conversation failed", "conversation_id", id, "error", err)
			continue
		}
		s.mu.Lock()
		if _, ok := s.tracked[id]; ok && !s.closed {
			for _, message := range ids {
				s.trackMessage(message, id)
			}
		}
		s.mu.Unlock()
	}

	if len(added) == 0 && len(removed) == 0 {
		observability.RecordReconciliation("unchanged")
		return nil
	}
	observability.RecordReconciliation("resubscribed")
	s.log.Debug("Subscriptions reconciled", "added", len(added), "removed", len(removed))
	return nil
}

// Consume is the subscription callback. It must stay non-blocking.
func (s *Synchronizer) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	switch evt := e.(type) {
	case event.MessagePosted:
		if _, ok := s.tracked[evt.Conversation]; ok {
			s.trackMessage(evt.Message, evt.Conversation)
		}
	case event.ConversationsChanged:
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return s.outbox.Consume(ctx, e)
}

// Teardown releases every subscription. Nothing reaches the delivery
// queue once it returns.
func (s *Synchronizer) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.users.Unsubscribe(s.user, s.observer)
	for id := range s.tracked {
		s.release(id)
	}
	s.log.Debug("Subscriptions released")
}

// Subscribed lists the tracked conversations and messages.
func (s *Synchronizer) Subscribed() ([]domain.ConversationID, []domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.tracked), lo.Keys(s.messageOf)
}

// The helpers below must be called with s.mu held.

func (s *Synchronizer) trackMessage(id domain.MessageID, conversation domain.ConversationID) {
	if _, ok := s.messageOf[id]; ok {
		return
	}
	s.messageOf[id] = conversation
	s.messages.Subscribe(id, s.observer, s)
}

func (s *Synchronizer) release(conversation domain.ConversationID) {
	s.conversations.Unsubscribe(conversation, s.observer)
	delete(s.tracked, conversation)
	for message, owner := range s.messageOf {
		if owner == conversation {
			s.messages.Unsubscribe(message, s.observer)
			delete(s.messageOf, message)
		}
	}
}

func (s *Synchronizer) renewIfDue() {
	now := s.now()
	if s.lastRenewed.IsZero() {
		s.lastRenewed = now
		return
	}
	if s.renewEvery <= 0 || now.Sub(s.lastRenewed) < s.renewEvery {
		return
	}
	s.users.Subscribe(s.user, s.observer, s)
	for id := range s.tracked {
		s.conversations.Subscribe(id, s.observer, s)
	}
	for id := range s.messageOf {
		s.messages.Subscribe(id, s.observer, s)
	}
	s.lastRenewed = now
}
