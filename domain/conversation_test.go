package domain

import (
	"chat-sync/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversation_Kind(t *testing.T) {
	t.Run("should be one on one with two members", func(t *testing.T) {
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
		require.NoError(t, err)
		require.Equal(t, KindOneOnOne, c.Kind())
	})

	t.Run("should be a group with more than two members", func(t *testing.T) {
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B", "C"}, NewMessageID(), time.Now())
		require.NoError(t, err)
		require.Equal(t, KindGroup, c.Kind())
	})

	t.Run("should be abandoned below two members", func(t *testing.T) {
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
		require.NoError(t, err)
		require.NoError(t, c.RemoveMember("B"))
		require.Equal(t, KindAbandoned, c.Kind())
	})
}

func TestNewConversation_Rejects_Initiator_Alone(t *testing.T) {
	req := require.New(t)

	_, err := NewConversation(NewConversationID(), "A", []UserID{"A"}, NewMessageID(), time.Now())

	req.ErrorIs(err, errors.ErrNotEnoughMembers)
}

func TestConversation_Invite(t *testing.T) {
	req := require.New(t)
	c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
	req.NoError(err)

	// When a member is invited
	_, err = c.Invite("A", "B", time.Now())
	// Then
	req.ErrorIs(err, errors.ErrAlreadyMemberOrInvited)
	req.ErrorIs(err, errors.ErrInvalidState)

	// When an outsider is invited twice
	invitation, err := c.Invite("A", "X", time.Now())
	req.NoError(err)
	req.Equal(UserID("X"), invitation.Invited)
	_, err = c.Invite("B", "X", time.Now())

	// Then the second one is refused
	req.ErrorIs(err, errors.ErrAlreadyMemberOrInvited)
	req.Equal([]UserID{"X"}, c.InvitedMembers())
}

func TestConversation_Resolve(t *testing.T) {
	t.Run("should sweep duplicates and add the member on accept", func(t *testing.T) {
		req := require.New(t)
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
		req.NoError(err)
		c.Invitations = []Invitation{
			{Conversation: c.ID, Inviter: "A", Invited: "X"},
			{Conversation: c.ID, Inviter: "B", Invited: "X"},
		}

		_, err = c.Resolve("X", true)

		req.NoError(err)
		req.Empty(c.Invitations)
		req.True(c.IsMember("X"))
		req.Equal(KindGroup, c.Kind())
	})

	t.Run("should not add the member on decline", func(t *testing.T) {
		req := require.New(t)
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
		req.NoError(err)
		_, err = c.Invite("A", "X", time.Now())
		req.NoError(err)

		_, err = c.Resolve("X", false)

		req.NoError(err)
		req.False(c.IsInvited("X"))
		req.False(c.IsMember("X"))
	})

	t.Run("should fail without invitation", func(t *testing.T) {
		c, err := NewConversation(NewConversationID(), "A", []UserID{"B"}, NewMessageID(), time.Now())
		require.NoError(t, err)

		_, err = c.Resolve("X", true)

		require.ErrorIs(t, err, errors.ErrNoSuchInvitation)
	})
}

func TestConversation_Rename_Rejects_Empty(t *testing.T) {
	req := require.New(t)
	c := Conversation{}

	req.ErrorIs(c.Rename(""), errors.ErrEmptyName)
	req.ErrorIs(c.ChangeTopic(""), errors.ErrEmptyTopic)
	req.NoError(c.Rename("friends"))
	req.Equal("friends", c.Name)
}

func TestUser_SyncMembership(t *testing.T) {
	req := require.New(t)
	u := NewUser("+33600000001", "Alice", time.Now())
	conv := NewConversationID()

	convChanged, invChanged := u.SyncMembership(conv, false, true)
	req.False(convChanged)
	req.True(invChanged)
	req.True(u.IsInvitedTo(conv))

	convChanged, invChanged = u.SyncMembership(conv, true, false)
	req.True(convChanged)
	req.True(invChanged)
	req.True(u.InConversation(conv))
	req.False(u.IsInvitedTo(conv))

	convChanged, invChanged = u.SyncMembership(conv, true, false)
	req.False(convChanged)
	req.False(invChanged)
}

func TestProfile_Merge_Keeps_Unset_Fields(t *testing.T) {
	req := require.New(t)
	status := "busy"
	p := Profile{DisplayName: "Alice", StatusLine: "hi"}

	merged := p.Merge(ProfileUpdate{StatusLine: &status})

	req.Equal("Alice", merged.DisplayName)
	req.Equal("busy", merged.StatusLine)
}

func TestMessage_AttachMedia_Once(t *testing.T) {
	req := require.New(t)
	m := Message{ID: NewMessageID()}

	req.NoError(m.AttachMedia(Media{StoreID: NewStoreID(), ContentType: "image/png"}))
	req.Equal(MediaImage, m.Media.Kind())
	req.ErrorIs(m.AttachMedia(Media{StoreID: NewStoreID()}), errors.ErrMediaAlreadyAttached)
}
