package services

import (
	"chat-sync/actors"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type membershipPair struct {
	user         domain.UserID
	conversation domain.ConversationID
}

// MembershipRepair remembers user/conversation pairs whose two views
// diverged and re-derives the user side from the conversation side.
type MembershipRepair struct {
	log           *slog.Logger
	conversations *actors.ConversationActor
	users         *actors.UserActor

	mu      sync.Mutex
	pending map[membershipPair]struct{}
}

func NewMembershipRepair(log *slog.Logger, conversations *actors.ConversationActor, users *actors.UserActor) *MembershipRepair {
	return &MembershipRepair{
		log:           log,
		conversations: conversations,
		users:         users,
		pending:       make(map[membershipPair]struct{}),
	}
}

func (r *MembershipRepair) Flag(user domain.UserID, conversation domain.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[membershipPair{user: user, conversation: conversation}] = struct{}{}
	observability.MembershipInconsistencies.Inc()
}

func (r *MembershipRepair) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Repair implements the Repairer interface.
func (r *MembershipRepair) Repair(ctx context.Context) (int, int, error) {
	r.mu.Lock()
	pairs := make([]membershipPair, 0, len(r.pending))
	for p := range r.pending {
		pairs = append(pairs, p)
	}
	r.mu.Unlock()

	var failures []error
	repaired := 0
	for _, p := range pairs {
		if err := r.repair(ctx, p); err != nil {
			failures = append(failures, fmt.Errorf("repair %s in %s: %w", p.user, p.conversation, err))
			continue
		}
		r.mu.Lock()
		delete(r.pending, p)
		r.mu.Unlock()
		repaired++
		r.log.Info("Membership repaired", "user_id", p.user, "conversation_id", p.conversation)
	}
	return repaired, r.Pending(), errors.Join(failures...)
}

func (r *MembershipRepair) repair(ctx context.Context, p membershipPair) error {
	var member bool
	var invitation *domain.Invitation

	c, err := r.conversations.Get(ctx, p.conversation)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		// Nothing on the conversation side: the user side must hold nothing either.
	case err != nil:
		return err
	default:
		member = c.IsMember(p.user)
		if inv, ok := c.Invitation(p.user); ok {
			invitation = &inv
		}
	}

	err = r.users.SyncMembership(ctx, p.user, p.conversation, member, invitation)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	return err
}
