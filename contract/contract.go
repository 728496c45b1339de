//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the observer handle held by a subscription registry.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is one persistent client connection.
// Done is closed once the peer has gone away.
type Connection interface {
	Send(ctx context.Context, payload []byte) error
	Done() <-chan struct{}
}

// IdentityResolver turns a bearer credential into a user identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.UserID, error)
}

// PhoneVerifier checks a verification code sent to a phone number.
type PhoneVerifier interface {
	Verify(ctx context.Context, phone domain.UserID, code string) (bool, error)
}

// Repairer re-derives state flagged as diverged.
// It reports how many items were repaired and how many remain.
type Repairer interface {
	Repair(ctx context.Context) (repaired int, pending int, err error)
}
