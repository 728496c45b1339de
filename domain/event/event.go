package event

import (
	"chat-sync/domain"
	"time"
)

type EntityKind string

const (
	EntityConversation EntityKind = "Conversation"
	EntityMessage      EntityKind = "Message"
	EntityUser         EntityKind = "User"
)

// Topic is a named change stream on one entity.
type Topic string

const (
	TopicNameChanged       Topic = "name-changed"
	TopicTopicChanged      Topic = "topic-changed"
	TopicMembershipChanged Topic = "membership-changed"
	TopicInvitationChanged Topic = "invitation-changed"
	TopicMessagePosted     Topic = "message-posted"

	TopicMediaAttached     Topic = "media-attached"
	TopicAuthoredConfirmed Topic = "authored-confirmed"

	TopicConversationsChanged Topic = "conversations-changed"
	TopicInvitationReceived   Topic = "invitation-received"
)

var (
	ConversationTopics = []Topic{
		TopicNameChanged,
		TopicTopicChanged,
		TopicMembershipChanged,
		TopicInvitationChanged,
		TopicMessagePosted,
	}
	MessageTopics = []Topic{TopicMediaAttached, TopicAuthoredConfirmed}
	UserTopics    = []Topic{TopicConversationsChanged, TopicInvitationReceived}
)

type Change string

const (
	ChangeNameChanged          Change = "NameChanged"
	ChangeTopicChanged         Change = "TopicChanged"
	ChangeMemberJoined         Change = "MemberJoined"
	ChangeMemberLeft           Change = "MemberLeft"
	ChangeMemberInvited        Change = "MemberInvited"
	ChangeInvitationAccepted   Change = "InvitationAccepted"
	ChangeInvitationDeclined   Change = "InvitationDeclined"
	ChangeMessagePosted        Change = "MessagePosted"
	ChangeMediaAttached        Change = "MediaChanged"
	ChangeMessageConfirmed     Change = "Confirmed"
	ChangeInvitationReceived   Change = "InvitationReceived"
	ChangeConversationsChanged Change = "ConversationsChanged"
)

type DomainEvent interface {
	EntityKind() EntityKind
	EntityID() string
	Change() Change
	Topic() Topic
	OccurredAt() time.Time
}

type conversationEvent struct{}

func (conversationEvent) EntityKind() EntityKind { return EntityConversation }

type NameChanged struct {
	conversationEvent
	Conversation domain.ConversationID `json:"conversation_id"`
	Name         string                `json:"name"`
	At           time.Time             `json:"at"`
}

func (e NameChanged) EntityID() string      { return e.Conversation.String() }
func (e NameChanged) Change() Change        { return ChangeNameChanged }
func (e NameChanged) Topic() Topic          { return TopicNameChanged }
func (e NameChanged) OccurredAt() time.Time { return e.At }

type TopicChanged struct {
	conversationEvent
	Conversation      domain.ConversationID `json:"conversation_id"`
	ConversationTopic string                `json:"topic"`
	At                time.Time             `json:"at"`
}

func (e TopicChanged) EntityID() string      { return e.Conversation.String() }
func (e TopicChanged) Change() Change        { return ChangeTopicChanged }
func (e TopicChanged) Topic() Topic          { return TopicTopicChanged }
func (e TopicChanged) OccurredAt() time.Time { return e.At }

type MemberJoined struct {
	conversationEvent
	Conversation domain.ConversationID `json:"conversation_id"`
	User         domain.UserID         `json:"user_id"`
	At           time.Time             `json:"at"`
}

func (e MemberJoined) EntityID() string      { return e.Conversation.String() }
func (e MemberJoined) Change() Change        { return ChangeMemberJoined }
func (e MemberJoined) Topic() Topic          { return TopicMembershipChanged }
func (e MemberJoined) OccurredAt() time.Time { return e.At }

type MemberLeft struct {
	conversationEvent
	Conversation domain.ConversationID `json:"conversation_id"`
	User         domain.UserID         `json:"user_id"`
	At           time.Time             `json:"at"`
}

func (e MemberLeft) EntityID() string      { return e.Conversation.String() }
func (e MemberLeft) Change() Change        { return ChangeMemberLeft }
func (e MemberLeft) Topic() Topic          { return TopicMembershipChanged }
func (e MemberLeft) OccurredAt() time.Time { return e.At }

type MemberInvited struct {
	conversationEvent
	Invitation domain.Invitation `json:"invitation"`
}

func (e MemberInvited) EntityID() string      { return e.Invitation.Conversation.String() }
func (e MemberInvited) Change() Change        { return ChangeMemberInvited }
func (e MemberInvited) Topic() Topic          { return TopicInvitationChanged }
func (e MemberInvited) OccurredAt() time.Time { return e.Invitation.At }

// InvitationResolved covers both outcomes of an invitation.
type InvitationResolved struct {
	conversationEvent
	Invitation domain.Invitation `json:"invitation"`
	Accepted   bool              `json:"accepted"`
	At         time.Time         `json:"at"`
}

func (e InvitationResolved) EntityID() string { return e.Invitation.Conversation.String() }
func (e InvitationResolved) Change() Change {
	if e.Accepted {
		return ChangeInvitationAccepted
	}
	return ChangeInvitationDeclined
}
func (e InvitationResolved) Topic() Topic          { return TopicInvitationChanged }
func (e InvitationResolved) OccurredAt() time.Time { return e.At }

type MessagePosted struct {
	conversationEvent
	Conversation domain.ConversationID `json:"conversation_id"`
	Message      domain.MessageID      `json:"message_id"`
	At           time.Time             `json:"at"`
}

func (e MessagePosted) EntityID() string      { return e.Conversation.String() }
func (e MessagePosted) Change() Change        { return ChangeMessagePosted }
func (e MessagePosted) Topic() Topic          { return TopicMessagePosted }
func (e MessagePosted) OccurredAt() time.Time { return e.At }

type messageEvent struct{}

func (messageEvent) EntityKind() EntityKind { return EntityMessage }

type MediaAttached struct {
	messageEvent
	Message domain.MessageID `json:"message_id"`
	Media   domain.Media     `json:"media"`
	At      time.Time        `json:"at"`
}

func (e MediaAttached) EntityID() string      { return string(e.Message) }
func (e MediaAttached) Change() Change        { return ChangeMediaAttached }
func (e MediaAttached) Topic() Topic          { return TopicMediaAttached }
func (e MediaAttached) OccurredAt() time.Time { return e.At }

type MessageConfirmed struct {
	messageEvent
	Message   domain.MessageID `json:"message_id"`
	Sender    domain.UserID    `json:"sender"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e MessageConfirmed) EntityID() string      { return string(e.Message) }
func (e MessageConfirmed) Change() Change        { return ChangeMessageConfirmed }
func (e MessageConfirmed) Topic() Topic          { return TopicAuthoredConfirmed }
func (e MessageConfirmed) OccurredAt() time.Time { return e.Timestamp }

type userEvent struct{}

func (userEvent) EntityKind() EntityKind { return EntityUser }

type InvitationReceived struct {
	userEvent
	User       domain.UserID     `json:"user_id"`
	Invitation domain.Invitation `json:"invitation"`
}

func (e InvitationReceived) EntityID() string      { return e.User.String() }
func (e InvitationReceived) Change() Change        { return ChangeInvitationReceived }
func (e InvitationReceived) Topic() Topic          { return TopicInvitationReceived }
func (e InvitationReceived) OccurredAt() time.Time { return e.Invitation.At }

type ConversationsChanged struct {
	userEvent
	User         domain.UserID         `json:"user_id"`
	Conversation domain.ConversationID `json:"conversation_id"`
	Joined       bool                  `json:"joined"`
	At           time.Time             `json:"at"`
}

func (e ConversationsChanged) EntityID() string      { return e.User.String() }
func (e ConversationsChanged) Change() Change        { return ChangeConversationsChanged }
func (e ConversationsChanged) Topic() Topic          { return TopicConversationsChanged }
func (e ConversationsChanged) OccurredAt() time.Time { return e.At }

// Envelope is the structured, transport-ready form of a notification.
type Envelope struct {
	Entity  EntityKind  `json:"entity"`
	ID      string      `json:"id"`
	Change  Change      `json:"change"`
	Payload DomainEvent `json:"payload"`
	At      time.Time   `json:"at"`
}

func Wrap(e DomainEvent) Envelope {
	return Envelope{
		Entity:  e.EntityKind(),
		ID:      e.EntityID(),
		Change:  e.Change(),
		Payload: e,
		At:      e.OccurredAt(),
	}
}
