package session

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/observability"
	"chat-sync/runtime/workers"
	"chat-sync/sink"
	"context"
	"log/slog"
	"time"
)

type Config struct {
	ReconcileInterval time.Duration
	DeliveryInterval  time.Duration
	SendTimeout       time.Duration
	RestartInterval   time.Duration
	QueueLimit        int
	// RenewEvery is how often held subscriptions are renewed, half the
	// observer expiry in practice.
	RenewEvery time.Duration
}

// Session ties one authenticated connection to its observer.
type Session struct {
	log          *slog.Logger
	user         domain.UserID
	synchronizer *Synchronizer
	outbox       *sink.Outbox
	supervisor   *workers.Supervisor
}

// Serve blocks until the connection goes away or ctx is canceled.
// Subscriptions are released before the delivery queue is closed.
func (s *Session) Serve(ctx context.Context) {
	observability.SessionsActive.Inc()
	defer observability.SessionsActive.Dec()
	s.log.Info("Session opened")

	s.supervisor.Run(ctx)

	s.synchronizer.Teardown()
	s.outbox.Close()
	s.log.Info("Session closed")
}

func (s *Session) Synchronizer() *Synchronizer {
	return s.synchronizer
}

// Factory opens sessions over shared entity sources.
type Factory struct {
	log           *slog.Logger
	users         UserSource
	conversations ConversationSource
	messages      MessageSource
	config        Config
}

func NewFactory(log *slog.Logger, users UserSource, conversations ConversationSource,
	messages MessageSource, config Config) *Factory {
	return &Factory{log: log, users: users, conversations: conversations, messages: messages, config: config}
}

func (f *Factory) Open(user domain.UserID, conn contract.Connection) *Session {
	log := f.log.With("user_id", user)
	outbox := sink.NewOutbox(log, f.config.QueueLimit)
	synchronizer := NewSynchronizer(log, user, f.users, f.conversations, f.messages, outbox, f.config.RenewEvery)
	supervisor := workers.NewSupervisor(log, f.config.RestartInterval).Linked()
	supervisor.Add(
		NewReconcileWorker(log, synchronizer, f.config.ReconcileInterval),
		NewTransportWorker(log, outbox, conn, f.config.DeliveryInterval, f.config.SendTimeout),
	)
	return &Session{
		log:          log.With("observer_id", synchronizer.ObserverID()),
		user:         user,
		synchronizer: synchronizer,
		outbox:       outbox,
		supervisor:   supervisor,
	}
}
