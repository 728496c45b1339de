// Package projection builds read models from entity state.
// Handles ordering, filtering, and the per-user view of a conversation.
// Does not mutate entities or emit events.
package projection

import (
	"chat-sync/domain"
	"sort"
	"time"

	"github.com/samber/lo"
)

// ConversationView is a conversation as seen by one user.
type ConversationView struct {
	ID             domain.ConversationID `json:"id"`
	Name           string                `json:"name"`
	Topic          string                `json:"topic"`
	Kind           domain.Kind           `json:"kind"`
	MessageCount   int                   `json:"message_count"`
	Members        []domain.UserID       `json:"members"`
	InvitedMembers []domain.UserID       `json:"invited_members"`
	UserIsMember   bool                  `json:"user_is_member"`
	UserIsInvited  bool                  `json:"user_is_invited"`
	CreatedAt      time.Time             `json:"created_at"`
}

func Conversation(c domain.Conversation, viewer domain.UserID) ConversationView {
	return ConversationView{
		ID:             c.ID,
		Name:           c.Name,
		Topic:          c.Topic,
		Kind:           c.Kind(),
		MessageCount:   len(c.Messages),
		Members:        lo.Ternary(c.Members == nil, []domain.UserID{}, c.Members),
		InvitedMembers: c.InvitedMembers(),
		UserIsMember:   c.IsMember(viewer),
		UserIsInvited:  c.IsInvited(viewer),
		CreatedAt:      c.CreatedAt,
	}
}

type MessageView struct {
	ID            domain.MessageID `json:"id"`
	Sender        domain.UserID    `json:"sender"`
	Timestamp     time.Time        `json:"timestamp"`
	EncryptedText []byte           `json:"encrypted_text"`
	Media         *domain.Media    `json:"media,omitempty"`
}

func Message(m domain.Message) MessageView {
	return MessageView{
		ID:            m.ID,
		Sender:        m.Sender,
		Timestamp:     m.Timestamp,
		EncryptedText: m.EncryptedText,
		Media:         m.Media,
	}
}

// Window selects messages of a history.
// From and To are inclusive bounds; Last keeps only the newest n when > 0.
type Window struct {
	From *time.Time
	To   *time.Time
	Last int
}

func (w Window) contains(at time.Time) bool {
	if w.From != nil && at.Before(*w.From) {
		return false
	}
	if w.To != nil && at.After(*w.To) {
		return false
	}
	return true
}

// Messages filters by the window and returns views oldest first.
// Duplicated ids are kept once.
func Messages(messages []domain.Message, w Window) []MessageView {
	selected := lo.Filter(lo.UniqBy(messages, func(m domain.Message) domain.MessageID { return m.ID }),
		func(m domain.Message, _ int) bool { return w.contains(m.Timestamp) })
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	if w.Last > 0 && len(selected) > w.Last {
		selected = selected[len(selected)-w.Last:]
	}
	return lo.Map(selected, func(m domain.Message, _ int) MessageView { return Message(m) })
}
