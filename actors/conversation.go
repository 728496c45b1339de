package actors

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/runtime"
	"context"
	"log/slog"
)

type ConversationActor struct {
	observable
	log   *slog.Logger
	store *runtime.Store[domain.Conversation]
	clock Clock
}

func NewConversationActor(log *slog.Logger, store *runtime.Store[domain.Conversation], hub *runtime.Hub, clock Clock) *ConversationActor {
	return &ConversationActor{
		observable: observable{hub: hub, topics: event.ConversationTopics},
		log:        log,
		store:      store,
		clock:      clock,
	}
}

// Initialize creates the conversation with its members and first message.
func (a *ConversationActor) Initialize(ctx context.Context, id domain.ConversationID,
	initiator domain.UserID, others []domain.UserID, first domain.MessageID) (domain.Conversation, error) {
	conversation, err := domain.NewConversation(id, initiator, others, first, a.clock.Now())
	if err != nil {
		return domain.Conversation{}, err
	}
	created, err := a.store.Create(ctx, string(id), conversation, func(c domain.Conversation) {
		a.notify(ctx, c.ID, event.MessagePosted{Conversation: c.ID, Message: first, At: c.CreatedAt})
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	a.log.Info("Conversation created", "conversation_id", id, "initiator", initiator, "kind", created.Kind())
	return created, nil
}

func (a *ConversationActor) Get(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	return a.store.Read(ctx, string(id))
}

func (a *ConversationActor) Name(ctx context.Context, id domain.ConversationID) (string, error) {
	c, err := a.Get(ctx, id)
	return c.Name, err
}

func (a *ConversationActor) Topic(ctx context.Context, id domain.ConversationID) (string, error) {
	c, err := a.Get(ctx, id)
	return c.Topic, err
}

func (a *ConversationActor) Members(ctx context.Context, id domain.ConversationID) ([]domain.UserID, error) {
	c, err := a.Get(ctx, id)
	return c.Members, err
}

func (a *ConversationActor) Kind(ctx context.Context, id domain.ConversationID) (domain.Kind, error) {
	c, err := a.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Kind(), nil
}

func (a *ConversationActor) MessageIDs(ctx context.Context, id domain.ConversationID) ([]domain.MessageID, error) {
	c, err := a.Get(ctx, id)
	return c.Messages, err
}

func (a *ConversationActor) MessageCount(ctx context.Context, id domain.ConversationID) (int, error) {
	c, err := a.Get(ctx, id)
	return len(c.Messages), err
}

func (a *ConversationActor) InvitedMembers(ctx context.Context, id domain.ConversationID) ([]domain.UserID, error) {
	c, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.InvitedMembers(), nil
}

func (a *ConversationActor) GetInvitation(ctx context.Context, id domain.ConversationID, invited domain.UserID) (domain.Invitation, error) {
	c, err := a.Get(ctx, id)
	if err != nil {
		return domain.Invitation{}, err
	}
	invitation, ok := c.Invitation(invited)
	if !ok {
		return domain.Invitation{}, errors.ErrNoSuchInvitation
	}
	return invitation, nil
}

func (a *ConversationActor) SetName(ctx context.Context, id domain.ConversationID, name string) error {
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		return c.Rename(name)
	}, func(c domain.Conversation) {
		a.notify(ctx, c.ID, event.NameChanged{Conversation: c.ID, Name: c.Name, At: a.clock.Now()})
	})
	return err
}

func (a *ConversationActor) SetTopic(ctx context.Context, id domain.ConversationID, topic string) error {
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		return c.ChangeTopic(topic)
	}, func(c domain.Conversation) {
		a.notify(ctx, c.ID, event.TopicChanged{Conversation: c.ID, ConversationTopic: c.Topic, At: a.clock.Now()})
	})
	return err
}

// PostMessage appends an authored message id.
func (a *ConversationActor) PostMessage(ctx context.Context, id domain.ConversationID, message domain.MessageID) error {
	var appended bool
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		appended = c.AppendMessage(message)
		return nil
	}, func(c domain.Conversation) {
		if appended {
			a.notify(ctx, c.ID, event.MessagePosted{Conversation: c.ID, Message: message, At: a.clock.Now()})
		}
	})
	return err
}

func (a *ConversationActor) Invite(ctx context.Context, id domain.ConversationID, inviter, invited domain.UserID) (domain.Invitation, error) {
	var invitation domain.Invitation
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		var err error
		invitation, err = c.Invite(inviter, invited, a.clock.Now())
		return err
	}, func(c domain.Conversation) {
		a.notify(ctx, c.ID, event.MemberInvited{Invitation: invitation})
	})
	return invitation, err
}

// ResolveInvitation removes every pending invitation of the invited user and
// adds them as a member on accept.
func (a *ConversationActor) ResolveInvitation(ctx context.Context, id domain.ConversationID,
	invited domain.UserID, accepted bool) (domain.Invitation, error) {
	var invitation domain.Invitation
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		var err error
		invitation, err = c.Resolve(invited, accepted)
		return err
	}, func(c domain.Conversation) {
		at := a.clock.Now()
		a.notify(ctx, c.ID, event.InvitationResolved{Invitation: invitation, Accepted: accepted, At: at})
		if accepted {
			a.notify(ctx, c.ID, event.MemberJoined{Conversation: c.ID, User: invited, At: at})
		}
	})
	return invitation, err
}

// RevokeInvitation drops a pending invitation without resolving it.
func (a *ConversationActor) RevokeInvitation(ctx context.Context, id domain.ConversationID, invited domain.UserID) error {
	var invitation domain.Invitation
	var revoked bool
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		invitation, _ = c.Invitation(invited)
		revoked = c.RevokeInvitation(invited)
		return nil
	}, func(c domain.Conversation) {
		if revoked {
			a.notify(ctx, c.ID, event.InvitationResolved{Invitation: invitation, At: a.clock.Now()})
		}
	})
	return err
}

func (a *ConversationActor) AddMember(ctx context.Context, id domain.ConversationID, user domain.UserID) error {
	var added bool
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		added = c.AddMember(user)
		return nil
	}, func(c domain.Conversation) {
		if added {
			a.notify(ctx, c.ID, event.MemberJoined{Conversation: c.ID, User: user, At: a.clock.Now()})
		}
	})
	return err
}

func (a *ConversationActor) RemoveMember(ctx context.Context, id domain.ConversationID, user domain.UserID) error {
	_, err := a.store.Mutate(ctx, string(id), func(c *domain.Conversation) error {
		return c.RemoveMember(user)
	}, func(c domain.Conversation) {
		a.notify(ctx, c.ID, event.MemberLeft{Conversation: c.ID, User: user, At: a.clock.Now()})
	})
	return err
}

// Subscribe registers the observer on all five conversation topics.
func (a *ConversationActor) Subscribe(id domain.ConversationID, observer runtime.ObserverID, sink contract.EventSink) {
	a.subscribe(string(id), observer, sink)
}

func (a *ConversationActor) Unsubscribe(id domain.ConversationID, observer runtime.ObserverID) {
	a.unsubscribe(string(id), observer)
}

func (a *ConversationActor) notify(ctx context.Context, id domain.ConversationID, evt event.DomainEvent) {
	delivered := a.hub.Notify(ctx, string(id), evt)
	a.log.Debug("Conversation notification", "conversation_id", id, "change", evt.Change(), "delivered", delivered)
}
