package services

import (
	"chat-sync/actors"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/projection"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

type IChatService interface {
	CreateConversation(ctx context.Context, cmd NewConversationCommand) (projection.ConversationView, error)
	GetConversation(ctx context.Context, user domain.UserID, id domain.ConversationID) (projection.ConversationView, error)
	ListConversations(ctx context.Context, user domain.UserID) ([]projection.ConversationView, error)
	PostMessage(ctx context.Context, cmd PostMessageCommand) (projection.MessageView, error)
	GetMessages(ctx context.Context, user domain.UserID, id domain.ConversationID, window projection.Window) ([]projection.MessageView, error)
	SetName(ctx context.Context, user domain.UserID, id domain.ConversationID, name string) error
	SetTopic(ctx context.Context, user domain.UserID, id domain.ConversationID, topic string) error
	Invite(ctx context.Context, inviter domain.UserID, id domain.ConversationID, invited domain.UserID) (domain.Invitation, error)
	ResolveInvitation(ctx context.Context, user domain.UserID, id domain.ConversationID, accepted bool) error
	Leave(ctx context.Context, user domain.UserID, id domain.ConversationID) error
	AttachMedia(ctx context.Context, user domain.UserID, id domain.ConversationID, message domain.MessageID, media domain.Media) error
}

type NewConversationCommand struct {
	Initiator     domain.UserID
	Members       []domain.UserID
	Name          string
	Topic         string
	EncryptedText []byte
}

type PostMessageCommand struct {
	Sender        domain.UserID
	Conversation  domain.ConversationID
	EncryptedText []byte
}

// ChatService runs the operations that span several entities.
// Membership changes always hit the conversation first and the user second;
// a failing user side is rolled back on the conversation, or flagged for
// repair when the rollback fails as well.
type ChatService struct {
	log           *slog.Logger
	conversations *actors.ConversationActor
	messages      *actors.MessageActor
	users         *actors.UserActor
	repair        *MembershipRepair
	clock         actors.Clock
}

func NewChatService(log *slog.Logger, conversations *actors.ConversationActor, messages *actors.MessageActor,
	users *actors.UserActor, repair *MembershipRepair, clock actors.Clock) IChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		users:         users,
		repair:        repair,
		clock:         clock,
	}
}

func (s *ChatService) CreateConversation(ctx context.Context, cmd NewConversationCommand) (projection.ConversationView, error) {
	others := lo.Without(lo.Uniq(cmd.Members), cmd.Initiator)
	if len(others) == 0 {
		return projection.ConversationView{}, errors.ErrNotEnoughMembers
	}
	for _, member := range append([]domain.UserID{cmd.Initiator}, others...) {
		if err := s.mustExist(ctx, member); err != nil {
			return projection.ConversationView{}, err
		}
	}

	// 1. First message, authored by the initiator
	first := domain.NewMessageID()
	if _, err := s.messages.Author(ctx, first, cmd.Initiator, s.clock.Now(), cmd.EncryptedText, nil); err != nil {
		return projection.ConversationView{}, err
	}

	// 2. Conversation side
	id := domain.NewConversationID()
	if _, err := s.conversations.Initialize(ctx, id, cmd.Initiator, others, first); err != nil {
		return projection.ConversationView{}, err
	}
	if cmd.Name != "" {
		if err := s.conversations.SetName(ctx, id, cmd.Name); err != nil {
			return projection.ConversationView{}, err
		}
	}
	if cmd.Topic != "" {
		if err := s.conversations.SetTopic(ctx, id, cmd.Topic); err != nil {
			return projection.ConversationView{}, err
		}
	}

	// 3. User sides. The conversation exists already, so a failure is repaired, not undone.
	for _, member := range append([]domain.UserID{cmd.Initiator}, others...) {
		if err := s.users.SyncMembership(ctx, member, id, true, nil); err != nil {
			s.flag(member, id, err)
		}
	}
	return s.GetConversation(ctx, cmd.Initiator, id)
}

func (s *ChatService) GetConversation(ctx context.Context, user domain.UserID, id domain.ConversationID) (projection.ConversationView, error) {
	c, err := s.conversations.Get(ctx, id)
	if err != nil {
		return projection.ConversationView{}, err
	}
	if !c.IsMember(user) && !c.IsInvited(user) {
		return projection.ConversationView{}, errors.ErrNotMember
	}
	return projection.Conversation(c, user), nil
}

// ListConversations returns the conversations a user belongs to, then the
// ones they are invited to.
func (s *ChatService) ListConversations(ctx context.Context, user domain.UserID) ([]projection.ConversationView, error) {
	u, err := s.users.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	views := make([]projection.ConversationView, 0, len(u.Conversations)+len(u.Invitations))
	for _, id := range lo.Uniq(append(append([]domain.ConversationID{}, u.Conversations...), u.Invitations...)) {
		c, err := s.conversations.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Warn("User lists an unknown conversation", "user_id", user, "conversation_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, projection.Conversation(c, user))
	}
	return views, nil
}

func (s *ChatService) PostMessage(ctx context.Context, cmd PostMessageCommand) (projection.MessageView, error) {
	if _, err := s.member(ctx, cmd.Sender, cmd.Conversation); err != nil {
		return projection.MessageView{}, err
	}
	id := domain.NewMessageID()
	message, err := s.messages.Author(ctx, id, cmd.Sender, s.clock.Now(), cmd.EncryptedText, nil)
	if err != nil {
		return projection.MessageView{}, err
	}
	if err := s.conversations.PostMessage(ctx, cmd.Conversation, id); err != nil {
		return projection.MessageView{}, fmt.Errorf("post %s: %w", id, err)
	}
	return projection.Message(message), nil
}

func (s *ChatService) GetMessages(ctx context.Context, user domain.UserID, id domain.ConversationID,
	window projection.Window) ([]projection.MessageView, error) {
	c, err := s.member(ctx, user, id)
	if err != nil {
		return nil, err
	}
	history := make([]domain.Message, 0, len(c.Messages))
	for _, messageID := range c.Messages {
		m, err := s.messages.Get(ctx, messageID)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Conversation references an unknown message", "conversation_id", id, "message_id", messageID)
			continue
		}
		if err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return projection.Messages(history, window), nil
}

func (s *ChatService) SetName(ctx context.Context, user domain.UserID, id domain.ConversationID, name string) error {
	if _, err := s.member(ctx, user, id); err != nil {
		return err
	}
	return s.conversations.SetName(ctx, id, name)
}

func (s *ChatService) SetTopic(ctx context.Context, user domain.UserID, id domain.ConversationID, topic string) error {
	if _, err := s.member(ctx, user, id); err != nil {
		return err
	}
	return s.conversations.SetTopic(ctx, id, topic)
}

func (s *ChatService) Invite(ctx context.Context, inviter domain.UserID, id domain.ConversationID,
	invited domain.UserID) (domain.Invitation, error) {
	if _, err := s.member(ctx, inviter, id); err != nil {
		return domain.Invitation{}, err
	}
	if err := s.mustExist(ctx, invited); err != nil {
		return domain.Invitation{}, err
	}
	invitation, err := s.conversations.Invite(ctx, id, inviter, invited)
	if err != nil {
		return domain.Invitation{}, err
	}
	err = s.syncUserSide(ctx, invited, id, false, &invitation, func(ctx context.Context) error {
		return s.conversations.RevokeInvitation(ctx, id, invited)
	})
	return invitation, err
}

func (s *ChatService) ResolveInvitation(ctx context.Context, user domain.UserID, id domain.ConversationID, accepted bool) error {
	invitation, err := s.conversations.ResolveInvitation(ctx, id, user, accepted)
	if err != nil {
		return err
	}
	var rollback func(context.Context) error
	if accepted {
		rollback = func(ctx context.Context) error {
			if err := s.conversations.RemoveMember(ctx, id, user); err != nil {
				return err
			}
			_, err := s.conversations.Invite(ctx, id, invitation.Inviter, user)
			return err
		}
	}
	return s.syncUserSide(ctx, user, id, accepted, nil, rollback)
}

func (s *ChatService) Leave(ctx context.Context, user domain.UserID, id domain.ConversationID) error {
	if err := s.conversations.RemoveMember(ctx, id, user); err != nil {
		return err
	}
	return s.syncUserSide(ctx, user, id, false, nil, func(ctx context.Context) error {
		return s.conversations.AddMember(ctx, id, user)
	})
}

// AttachMedia sets the media reference of a message the user can see.
func (s *ChatService) AttachMedia(ctx context.Context, user domain.UserID, id domain.ConversationID,
	message domain.MessageID, media domain.Media) error {
	c, err := s.member(ctx, user, id)
	if err != nil {
		return err
	}
	if !c.HasMessage(message) {
		return errors.ErrMessageNotInConversation
	}
	return s.messages.SetMediaReference(ctx, message, media)
}

func (s *ChatService) member(ctx context.Context, user domain.UserID, id domain.ConversationID) (domain.Conversation, error) {
	c, err := s.conversations.Get(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !c.IsMember(user) {
		return domain.Conversation{}, errors.ErrNotMember
	}
	return c, nil
}

func (s *ChatService) mustExist(ctx context.Context, user domain.UserID) error {
	exists, err := s.users.Exists(ctx, user)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", user, errors.ErrNotFound)
	}
	return nil
}

// syncUserSide applies the user half of a membership change once the
// conversation half committed.
func (s *ChatService) syncUserSide(ctx context.Context, user domain.UserID, id domain.ConversationID,
	member bool, invitation *domain.Invitation, rollback func(context.Context) error) error {
	err := s.users.SyncMembership(ctx, user, id, member, invitation)
	if err == nil {
		return nil
	}
	if rollback != nil {
		rollbackErr := rollback(ctx)
		if rollbackErr == nil {
			s.log.Warn("User side failed, conversation side rolled back", "user_id", user, "conversation_id", id, "error", err)
			return fmt.Errorf("update user %s: %w", user, err)
		}
		err = errors.Join(err, rollbackErr)
	}
	s.flag(user, id, err)
	return fmt.Errorf("%w: %w", errors.ErrInconsistentMembership, err)
}

func (s *ChatService) flag(user domain.UserID, id domain.ConversationID, err error) {
	s.log.Error("Membership views diverged, flagged for repair", "user_id", user, "conversation_id", id, "error", err)
	s.repair.Flag(user, id)
}
