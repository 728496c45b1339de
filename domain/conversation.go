package domain

import (
	"chat-sync/errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type ConversationID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

func ParseConversationID(s string) (ConversationID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", errors.ErrInvalidRequest
	}
	return ConversationID(id.String()), nil
}

func (c ConversationID) String() string {
	return string(c)
}

type Kind string

const (
	KindOneOnOne Kind = "OneOnOne"
	KindGroup    Kind = "Group"
	// KindAbandoned is reported once members have left below two.
	KindAbandoned Kind = "Abandoned"
)

// Invitation is identified by the pair (conversation, invited user).
type Invitation struct {
	Conversation ConversationID `json:"conversation_id"`
	Inviter      UserID         `json:"inviter"`
	Invited      UserID         `json:"invited"`
	At           time.Time      `json:"at"`
}

func (i Invitation) ID() string {
	return fmt.Sprintf("%s/%s", i.Conversation, i.Invited)
}

type Conversation struct {
	ID          ConversationID
	Name        string
	Topic       string
	Members     []UserID
	Messages    []MessageID
	Invitations []Invitation
	CreatedAt   time.Time
}

// NewConversation builds a conversation between an initiator and at least one
// other user, seeded with its first message.
func NewConversation(id ConversationID, initiator UserID, others []UserID, first MessageID, at time.Time) (Conversation, error) {
	members := lo.Uniq(append([]UserID{initiator}, others...))
	if len(members) < 2 {
		return Conversation{}, errors.ErrNotEnoughMembers
	}
	return Conversation{
		ID:        id,
		Members:   members,
		Messages:  []MessageID{first},
		CreatedAt: at,
	}, nil
}

func (c Conversation) Kind() Kind {
	switch n := len(c.Members); {
	case n == 2:
		return KindOneOnOne
	case n > 2:
		return KindGroup
	default:
		return KindAbandoned
	}
}

func (c Conversation) IsMember(user UserID) bool {
	return lo.Contains(c.Members, user)
}

func (c Conversation) IsInvited(user UserID) bool {
	return lo.ContainsBy(c.Invitations, func(i Invitation) bool { return i.Invited == user })
}

func (c Conversation) HasMessage(id MessageID) bool {
	return lo.Contains(c.Messages, id)
}

func (c Conversation) InvitedMembers() []UserID {
	return lo.Uniq(lo.Map(c.Invitations, func(i Invitation, _ int) UserID { return i.Invited }))
}

func (c Conversation) Invitation(invited UserID) (Invitation, bool) {
	return lo.Find(c.Invitations, func(i Invitation) bool { return i.Invited == invited })
}

func (c *Conversation) Rename(name string) error {
	if name == "" {
		return errors.ErrEmptyName
	}
	c.Name = name
	return nil
}

func (c *Conversation) ChangeTopic(topic string) error {
	if topic == "" {
		return errors.ErrEmptyTopic
	}
	c.Topic = topic
	return nil
}

// AppendMessage reports whether the id was new.
func (c *Conversation) AppendMessage(id MessageID) bool {
	if c.HasMessage(id) {
		return false
	}
	c.Messages = append(c.Messages, id)
	return true
}

func (c *Conversation) Invite(inviter, invited UserID, at time.Time) (Invitation, error) {
	if c.IsMember(invited) || c.IsInvited(invited) {
		return Invitation{}, errors.ErrAlreadyMemberOrInvited
	}
	invitation := Invitation{Conversation: c.ID, Inviter: inviter, Invited: invited, At: at}
	c.Invitations = append(c.Invitations, invitation)
	return invitation, nil
}

// Resolve removes every invitation addressed to the invited user and, when
// accepted, makes them a member.
func (c *Conversation) Resolve(invited UserID, accepted bool) (Invitation, error) {
	invitation, ok := c.Invitation(invited)
	if !ok {
		return Invitation{}, errors.ErrNoSuchInvitation
	}
	c.RevokeInvitation(invited)
	if accepted {
		c.AddMember(invited)
	}
	return invitation, nil
}

func (c *Conversation) RevokeInvitation(invited UserID) bool {
	before := len(c.Invitations)
	c.Invitations = lo.Reject(c.Invitations, func(i Invitation, _ int) bool { return i.Invited == invited })
	return len(c.Invitations) != before
}

func (c *Conversation) AddMember(user UserID) bool {
	if c.IsMember(user) {
		return false
	}
	c.Members = append(c.Members, user)
	return true
}

func (c *Conversation) RemoveMember(user UserID) error {
	if !c.IsMember(user) {
		return errors.ErrNotMember
	}
	c.Members = lo.Without(c.Members, user)
	return nil
}
