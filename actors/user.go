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

type UserActor struct {
	observable
	log   *slog.Logger
	store *runtime.Store[domain.User]
	clock Clock
}

func NewUserActor(log *slog.Logger, store *runtime.Store[domain.User], hub *runtime.Hub, clock Clock) *UserActor {
	return &UserActor{
		observable: observable{hub: hub, topics: event.UserTopics},
		log:        log,
		store:      store,
		clock:      clock,
	}
}

// Register creates the user on its first successful verification.
// Registering an existing user returns it unchanged.
func (a *UserActor) Register(ctx context.Context, id domain.UserID, displayName string) (domain.User, bool, error) {
	user, err := a.store.Create(ctx, string(id), domain.NewUser(id, displayName, a.clock.Now()), nil)
	if errors.Is(err, errors.ErrAlreadyExists) {
		existing, err := a.Get(ctx, id)
		return existing, false, err
	}
	if err != nil {
		return domain.User{}, false, err
	}
	a.log.Info("User registered", "user_id", id)
	return user, true, nil
}

func (a *UserActor) Get(ctx context.Context, id domain.UserID) (domain.User, error) {
	return a.store.Read(ctx, string(id))
}

func (a *UserActor) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	return a.store.Exists(ctx, string(id))
}

func (a *UserActor) Profile(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	u, err := a.Get(ctx, id)
	return u.Profile, err
}

// UpdateProfile merges the non-nil fields of update into the profile.
func (a *UserActor) UpdateProfile(ctx context.Context, id domain.UserID, update domain.ProfileUpdate) (domain.Profile, error) {
	u, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		u.Profile = u.Profile.Merge(update)
		return nil
	}, nil)
	return u.Profile, err
}

// SetAvatar replaces the profile picture, nil clears it.
// It returns the reference it replaced.
func (a *UserActor) SetAvatar(ctx context.Context, id domain.UserID, avatar *domain.Media) (*domain.Media, error) {
	var previous *domain.Media
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		previous = u.Profile.Avatar
		u.Profile.Avatar = avatar
		return nil
	}, nil)
	return previous, err
}

func (a *UserActor) Options(ctx context.Context, id domain.UserID) (domain.Options, error) {
	u, err := a.Get(ctx, id)
	return u.Options, err
}

func (a *UserActor) SetOptions(ctx context.Context, id domain.UserID, options domain.Options) error {
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		u.Options = options
		return nil
	}, nil)
	return err
}

func (a *UserActor) Tokens(ctx context.Context, id domain.UserID) (domain.Tokens, error) {
	u, err := a.Get(ctx, id)
	return u.Tokens, err
}

func (a *UserActor) SetTokens(ctx context.Context, id domain.UserID, tokens domain.Tokens) error {
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		u.Tokens = tokens
		return nil
	}, nil)
	return err
}

// RotateTokens replaces the tokens of a user only if check accepts the
// current ones, both under the user's lock.
func (a *UserActor) RotateTokens(ctx context.Context, id domain.UserID,
	check func(current domain.Tokens) error, next domain.Tokens) error {
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		if err := check(u.Tokens); err != nil {
			return err
		}
		u.Tokens = next
		return nil
	}, nil)
	return err
}

func (a *UserActor) Contacts(ctx context.Context, id domain.UserID) ([]domain.UserID, error) {
	u, err := a.Get(ctx, id)
	return u.Contacts, err
}

func (a *UserActor) AddContact(ctx context.Context, id, contact domain.UserID) error {
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		u.AddContact(contact)
		return nil
	}, nil)
	return err
}

func (a *UserActor) RemoveContact(ctx context.Context, id, contact domain.UserID) error {
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		u.RemoveContact(contact)
		return nil
	}, nil)
	return err
}

func (a *UserActor) Conversations(ctx context.Context, id domain.UserID) ([]domain.ConversationID, error) {
	u, err := a.Get(ctx, id)
	return u.Conversations, err
}

func (a *UserActor) ConversationCount(ctx context.Context, id domain.UserID) (int, error) {
	u, err := a.Get(ctx, id)
	return len(u.Conversations), err
}

func (a *UserActor) Invitations(ctx context.Context, id domain.UserID) ([]domain.ConversationID, error) {
	u, err := a.Get(ctx, id)
	return u.Invitations, err
}

// SyncMembership aligns the user-side sets with one conversation: member
// tells whether the user belongs to it, a non-nil invitation that the user
// is invited. Observers of the user hear about every actual change.
func (a *UserActor) SyncMembership(ctx context.Context, id domain.UserID, conversation domain.ConversationID,
	member bool, invitation *domain.Invitation) error {
	var conversationsChanged, invitationsChanged bool
	_, err := a.store.Mutate(ctx, string(id), func(u *domain.User) error {
		conversationsChanged, invitationsChanged = u.SyncMembership(conversation, member, invitation != nil)
		return nil
	}, func(u domain.User) {
		if conversationsChanged {
			a.notify(ctx, event.ConversationsChanged{User: u.ID, Conversation: conversation, Joined: member, At: a.clock.Now()})
		}
		if invitationsChanged && invitation != nil {
			a.notify(ctx, event.InvitationReceived{User: u.ID, Invitation: *invitation})
		}
	})
	return err
}

// Subscribe registers the observer on the user's own topics.
func (a *UserActor) Subscribe(id domain.UserID, observer runtime.ObserverID, sink contract.EventSink) {
	a.subscribe(string(id), observer, sink)
}

func (a *UserActor) Unsubscribe(id domain.UserID, observer runtime.ObserverID) {
	a.unsubscribe(string(id), observer)
}

func (a *UserActor) notify(ctx context.Context, evt event.DomainEvent) {
	delivered := a.hub.Notify(ctx, evt.EntityID(), evt)
	a.log.Debug("User notification", "user_id", evt.EntityID(), "change", evt.Change(), "delivered", delivered)
}
