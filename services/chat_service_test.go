package services

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/projection"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatService_CreateConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "C")

	t.Run("should create a one on one conversation", func(t *testing.T) {
		req := require.New(t)
		view, err := f.chat.CreateConversation(ctx, NewConversationCommand{
			Initiator: "A", Members: []domain.UserID{"B"}, EncryptedText: []byte("hi"),
		})
		req.NoError(err)
		req.Equal(domain.KindOneOnOne, view.Kind)
		req.Equal(1, view.MessageCount)
		req.True(view.UserIsMember)
		req.Contains(f.conversationsOf(t, "A"), view.ID)
		req.Contains(f.conversationsOf(t, "B"), view.ID)
	})

	t.Run("should create a named group", func(t *testing.T) {
		req := require.New(t)
		view, err := f.chat.CreateConversation(ctx, NewConversationCommand{
			Initiator: "A", Members: []domain.UserID{"B", "C", "A"}, Name: "team", Topic: "launch",
		})
		req.NoError(err)
		req.Equal(domain.KindGroup, view.Kind)
		req.Equal("team", view.Name)
		req.Equal("launch", view.Topic)
		req.Len(view.Members, 3)
	})

	t.Run("should refuse a conversation without other members", func(t *testing.T) {
		_, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"A"}})
		require.ErrorIs(t, err, errors.ErrNotEnoughMembers)
	})

	t.Run("should refuse unknown members", func(t *testing.T) {
		_, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"Z"}})
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestChatService_Messages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "C")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{
		Initiator: "A", Members: []domain.UserID{"B"}, EncryptedText: []byte("first"),
	})
	req.NoError(err)

	// Given two more messages
	second, err := f.chat.PostMessage(ctx, PostMessageCommand{Sender: "B", Conversation: view.ID, EncryptedText: []byte("second")})
	req.NoError(err)
	third, err := f.chat.PostMessage(ctx, PostMessageCommand{Sender: "A", Conversation: view.ID, EncryptedText: []byte("third")})
	req.NoError(err)
	req.True(second.Timestamp.Before(third.Timestamp))

	// Then the whole history comes back oldest first
	all, err := f.chat.GetMessages(ctx, "A", view.ID, projection.Window{})
	req.NoError(err)
	req.Len(all, 3)
	req.Equal([]byte("first"), all[0].EncryptedText)
	req.Equal(second.ID, all[1].ID)
	req.Equal(third.ID, all[2].ID)

	// And a window on one timestamp returns only that message
	at := all[0].Timestamp
	window, err := f.chat.GetMessages(ctx, "A", view.ID, projection.Window{From: &at, To: &at})
	req.NoError(err)
	req.Len(window, 1)
	req.Equal(all[0].ID, window[0].ID)

	last, err := f.chat.GetMessages(ctx, "B", view.ID, projection.Window{Last: 1})
	req.NoError(err)
	req.Len(last, 1)
	req.Equal(third.ID, last[0].ID)

	// And outsiders can neither read nor post
	_, err = f.chat.GetMessages(ctx, "C", view.ID, projection.Window{})
	req.ErrorIs(err, errors.ErrNotMember)
	_, err = f.chat.PostMessage(ctx, PostMessageCommand{Sender: "C", Conversation: view.ID})
	req.ErrorIs(err, errors.ErrNotMember)
}

func TestChatService_Invitation_Flow(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "X")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)

	// When A invites X
	invitation, err := f.chat.Invite(ctx, "A", view.ID, "X")
	req.NoError(err)
	req.Equal(domain.UserID("A"), invitation.Inviter)

	// Then X sees the invitation in its listing
	listed, err := f.chat.ListConversations(ctx, "X")
	req.NoError(err)
	req.Len(listed, 1)
	req.True(listed[0].UserIsInvited)
	req.False(listed[0].UserIsMember)

	// And inviting again fails
	_, err = f.chat.Invite(ctx, "B", view.ID, "X")
	req.ErrorIs(err, errors.ErrAlreadyMemberOrInvited)

	// When X accepts
	req.NoError(f.chat.ResolveInvitation(ctx, "X", view.ID, true))

	// Then both sides agree
	conversation, err := f.chat.GetConversation(ctx, "X", view.ID)
	req.NoError(err)
	req.True(conversation.UserIsMember)
	req.Equal(domain.KindGroup, conversation.Kind)
	req.Empty(conversation.InvitedMembers)
	req.Contains(f.conversationsOf(t, "X"), view.ID)
	invitations, err := f.users.Invitations(ctx, "X")
	req.NoError(err)
	req.Empty(invitations)

	// And resolving again fails
	req.ErrorIs(f.chat.ResolveInvitation(ctx, "X", view.ID, true), errors.ErrNoSuchInvitation)
}

func TestChatService_Decline_Leaves_Membership_Unchanged(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "X")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)
	_, err = f.chat.Invite(ctx, "A", view.ID, "X")
	req.NoError(err)

	// When X declines
	req.NoError(f.chat.ResolveInvitation(ctx, "X", view.ID, false))

	// Then the members are the same and the invitation is gone on both sides
	conversation, err := f.chat.GetConversation(ctx, "A", view.ID)
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{"A", "B"}, conversation.Members)
	req.Equal(domain.KindOneOnOne, conversation.Kind)
	req.Empty(conversation.InvitedMembers)
	req.NotContains(f.conversationsOf(t, "X"), view.ID)
	invitations, err := f.users.Invitations(ctx, "X")
	req.NoError(err)
	req.Empty(invitations)

	// And X can be invited again
	_, err = f.chat.Invite(ctx, "B", view.ID, "X")
	req.NoError(err)
	invitations, err = f.users.Invitations(ctx, "X")
	req.NoError(err)
	req.Equal([]domain.ConversationID{view.ID}, invitations)
}

// postings records the messages announced on a conversation.
type postings struct {
	mu       sync.Mutex
	messages []domain.MessageID
}

func (p *postings) Consume(_ context.Context, e event.DomainEvent) error {
	if posted, ok := e.(event.MessagePosted); ok {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.messages = append(p.messages, posted.Message)
	}
	return nil
}

func TestChatService_Invited_Member_Joins_And_Sees_Posts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "X")

	// Given a one on one conversation between A and B
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{
		Initiator: "A", Members: []domain.UserID{"B"}, EncryptedText: []byte("hi"),
	})
	req.NoError(err)

	// When A invites X
	_, err = f.chat.Invite(ctx, "A", view.ID, "X")
	req.NoError(err)
	invitations, err := f.users.Invitations(ctx, "X")
	req.NoError(err)
	req.Len(invitations, 1)

	// And X accepts
	req.NoError(f.chat.ResolveInvitation(ctx, "X", view.ID, true))
	conversation, err := f.chat.GetConversation(ctx, "X", view.ID)
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{"A", "B", "X"}, conversation.Members)
	req.Empty(conversation.InvitedMembers)
	before, err := f.conversations.MessageCount(ctx, view.ID)
	req.NoError(err)

	// And B posts while someone listens
	observer := &postings{}
	f.conversations.Subscribe(view.ID, "session-1", observer)
	posted, err := f.chat.PostMessage(ctx, PostMessageCommand{Sender: "B", Conversation: view.ID, EncryptedText: []byte("welcome")})
	req.NoError(err)

	// Then the count grows by one and the post is announced
	after, err := f.conversations.MessageCount(ctx, view.ID)
	req.NoError(err)
	req.Equal(before+1, after)
	observer.mu.Lock()
	defer observer.mu.Unlock()
	req.Equal([]domain.MessageID{posted.ID}, observer.messages)
}

func TestChatService_Invite_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "C", "X")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)

	_, err = f.chat.Invite(ctx, "C", view.ID, "X")
	req.ErrorIs(err, errors.ErrNotMember)
	_, err = f.chat.Invite(ctx, "A", view.ID, "nobody")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestChatService_Leave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)

	req.NoError(f.chat.Leave(ctx, "B", view.ID))

	req.NotContains(f.conversationsOf(t, "B"), view.ID)
	conversation, err := f.chat.GetConversation(ctx, "A", view.ID)
	req.NoError(err)
	req.Equal(domain.KindAbandoned, conversation.Kind)
	req.ErrorIs(f.chat.Leave(ctx, "B", view.ID), errors.ErrNotMember)
}

func TestChatService_Leave_Rolls_Back_When_User_Side_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)

	// Given a user store refusing writes
	f.repository.failWhen(under("v1/user"))

	// When B leaves
	err = f.chat.Leave(ctx, "B", view.ID)

	// Then the conversation side is restored and nothing is flagged
	req.Error(err)
	req.NotErrorIs(err, errors.ErrInconsistentMembership)
	conversation, err := f.chat.GetConversation(ctx, "B", view.ID)
	req.NoError(err)
	req.True(conversation.UserIsMember)
	req.Zero(f.repair.Pending())
}

func TestChatService_Leave_Flags_When_Rollback_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)

	// Given a store refusing user writes, and conversation writes after the first one
	conversationWrites := 0
	f.repository.failWhen(func(key string) bool {
		if under("v1/conversation")(key) {
			conversationWrites++
			return conversationWrites > 1
		}
		return under("v1/user")(key)
	})

	// When B leaves
	err = f.chat.Leave(ctx, "B", view.ID)

	// Then the pair is flagged
	req.ErrorIs(err, errors.ErrInconsistentMembership)
	req.Equal(1, f.repair.Pending())
	req.Contains(f.conversationsOf(t, "B"), view.ID)

	// When the store heals and the repair runs
	f.repository.failWhen(nil)
	repaired, pending, err := f.repair.Repair(ctx)

	// Then the user side follows the conversation side
	req.NoError(err)
	req.Equal(1, repaired)
	req.Zero(pending)
	req.NotContains(f.conversationsOf(t, "B"), view.ID)
}

func TestChatService_AttachMedia(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B", "C")
	view, err := f.chat.CreateConversation(ctx, NewConversationCommand{Initiator: "A", Members: []domain.UserID{"B"}})
	req.NoError(err)
	message, err := f.chat.PostMessage(ctx, PostMessageCommand{Sender: "A", Conversation: view.ID})
	req.NoError(err)
	media, err := f.media.Store(ctx, "dot.png", png)
	req.NoError(err)

	req.ErrorIs(f.chat.AttachMedia(ctx, "C", view.ID, message.ID, media), errors.ErrNotMember)
	req.ErrorIs(f.chat.AttachMedia(ctx, "A", view.ID, domain.NewMessageID(), media), errors.ErrMessageNotInConversation)
	req.NoError(f.chat.AttachMedia(ctx, "B", view.ID, message.ID, media))
	req.ErrorIs(f.chat.AttachMedia(ctx, "A", view.ID, message.ID, media), errors.ErrMediaAlreadyAttached)

	messages, err := f.chat.GetMessages(ctx, "A", view.ID, projection.Window{Last: 1})
	req.NoError(err)
	req.Equal(media.StoreID, messages[0].Media.StoreID)
}
