// Package domain contains core concepts of the chat system.
// Entities are plain values: actors own their lifecycle, the domain owns their rules.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"
)

// UserID is the verified phone number of a user, in E.164 format.
type UserID string

func (u UserID) String() string {
	return string(u)
}

type Profile struct {
	DisplayName string `json:"display_name"`
	StatusLine  string `json:"status_line"`
	Avatar      *Media `json:"avatar,omitempty"`
}

// ProfileUpdate carries the fields a client wants to change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	StatusLine  *string `json:"status_line,omitempty"`
}

func (p Profile) Merge(update ProfileUpdate) Profile {
	if update.DisplayName != nil {
		p.DisplayName = *update.DisplayName
	}
	if update.StatusLine != nil {
		p.StatusLine = *update.StatusLine
	}
	return p
}

type Options struct {
	SendNotifications bool `json:"send_notifications"`
}

func DefaultOptions() Options {
	return Options{SendNotifications: true}
}

// Tokens keeps the refresh credential of a user.
// Access tokens are stateless and never stored.
type Tokens struct {
	RefreshTokenHash    string    `cbor:"refresh_token_hash" json:"-"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
}

type User struct {
	ID            UserID
	Profile       Profile
	Options       Options
	Tokens        Tokens
	Contacts      []UserID
	Conversations []ConversationID
	Invitations   []ConversationID
	CreatedAt     time.Time
}

func NewUser(id UserID, displayName string, at time.Time) User {
	return User{
		ID:        id,
		Profile:   Profile{DisplayName: displayName},
		Options:   DefaultOptions(),
		CreatedAt: at,
	}
}

func (u User) InConversation(id ConversationID) bool {
	return lo.Contains(u.Conversations, id)
}

func (u User) IsInvitedTo(id ConversationID) bool {
	return lo.Contains(u.Invitations, id)
}

func (u *User) AddContact(id UserID) bool {
	if id == u.ID || lo.Contains(u.Contacts, id) {
		return false
	}
	u.Contacts = append(u.Contacts, id)
	return true
}

func (u *User) RemoveContact(id UserID) bool {
	if !lo.Contains(u.Contacts, id) {
		return false
	}
	u.Contacts = lo.Without(u.Contacts, id)
	return true
}

// SyncMembership aligns the user-side view of one conversation with the
// conversation-side facts. It reports which sets actually changed.
func (u *User) SyncMembership(id ConversationID, member, invited bool) (conversationsChanged, invitationsChanged bool) {
	switch {
	case member && !u.InConversation(id):
		u.Conversations = append(u.Conversations, id)
		conversationsChanged = true
	case !member && u.InConversation(id):
		u.Conversations = lo.Without(u.Conversations, id)
		conversationsChanged = true
	}
	switch {
	case invited && !u.IsInvitedTo(id):
		u.Invitations = append(u.Invitations, id)
		invitationsChanged = true
	case !invited && u.IsInvitedTo(id):
		u.Invitations = lo.Without(u.Invitations, id)
		invitationsChanged = true
	}
	return conversationsChanged, invitationsChanged
}
