package runtime

import (
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fxamacker/cbor/v2"
)

var encoding = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Mutation changes a private draft of the entity state.
// Returning an error abandons the draft.
type Mutation[T any] func(state *T) error

// cell is the in-memory activation of one entity.
// raw is the last committed encoding, nil while the entity does not exist.
type cell struct {
	mu     sync.RWMutex
	loaded bool
	raw    []byte
}

type existence int

const (
	anyState existence = iota
	mustExist
	mustNotExist
)

// Store gives every entity id a single writer.
// Mutations on one id are serialized, readers wait for the in-flight mutation,
// and different ids proceed in parallel. State is activated lazily from the
// repository on first access and written back before a mutation returns.
type Store[T any] struct {
	log           *slog.Logger
	repository    repositories.IRecordRepository
	namespace     string
	maxRetries    uint64
	retryInterval time.Duration

	mu    sync.Mutex
	cells map[string]*cell
}

func NewStore[T any](log *slog.Logger, repository repositories.IRecordRepository,
	namespace string, maxRetries int, retryInterval time.Duration) *Store[T] {
	return &Store[T]{
		log:           log,
		repository:    repository,
		namespace:     namespace,
		maxRetries:    uint64(max(maxRetries, 0)),
		retryInterval: retryInterval,
		cells:         make(map[string]*cell),
	}
}

// Read returns a copy of the committed state.
func (s *Store[T]) Read(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	c, err := s.activate(id)
	if err != nil {
		return zero, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.raw == nil {
		return zero, fmt.Errorf("%s: %w", repositories.Key(s.namespace, id), errors.ErrNotFound)
	}
	return s.decode(c.raw)
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Read(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Mutate applies fn to an existing entity, errors.ErrNotFound otherwise.
// onCommit runs once the new state is durable, while the entity is still
// locked, so notifications leave in commit order. It must not call back
// into the same store for the same id.
func (s *Store[T]) Mutate(ctx context.Context, id string, fn Mutation[T], onCommit func(T)) (T, error) {
	return s.apply(ctx, id, mustExist, func(state *T, _ bool) error { return fn(state) }, onCommit)
}

// Create persists a brand new entity, errors.ErrAlreadyExists if the id is taken.
func (s *Store[T]) Create(ctx context.Context, id string, state T, onCommit func(T)) (T, error) {
	return s.apply(ctx, id, mustNotExist, func(draft *T, _ bool) error {
		*draft = state
		return nil
	}, onCommit)
}

// Upsert applies fn whether or not the entity exists yet.
func (s *Store[T]) Upsert(ctx context.Context, id string, fn func(state *T, exists bool) error, onCommit func(T)) (T, error) {
	return s.apply(ctx, id, anyState, fn, onCommit)
}

func (s *Store[T]) apply(ctx context.Context, id string, want existence,
	fn func(state *T, exists bool) error, onCommit func(T)) (T, error) {
	var zero T
	key := repositories.Key(s.namespace, id)
	c := s.cell(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.load(c, key); err != nil {
		return zero, err
	}
	exists := c.raw != nil
	switch {
	case want == mustExist && !exists:
		return zero, fmt.Errorf("%s: %w", key, errors.ErrNotFound)
	case want == mustNotExist && exists:
		return zero, fmt.Errorf("%s: %w", key, errors.ErrAlreadyExists)
	}

	// The draft is decoded from the committed bytes: nothing the mutation
	// touches is shared with the cached state.
	draft := zero
	if exists {
		var err error
		if draft, err = s.decode(c.raw); err != nil {
			return zero, err
		}
	}
	if err := fn(&draft, exists); err != nil {
		return zero, err
	}

	raw, err := encoding.Marshal(draft)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.persist(ctx, key, raw); err != nil {
		return zero, err
	}
	c.raw = raw

	if onCommit != nil {
		onCommit(draft)
	}
	return draft, nil
}

// persist writes with bounded exponential backoff.
// On exhaustion the cell keeps its previous committed bytes.
func (s *Store[T]) persist(ctx context.Context, key string, raw []byte) error {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts > 1 {
			observability.PersistRetries.WithLabelValues(s.namespace).Inc()
		}
		return s.repository.Put(key, raw)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval
	policy.MaxInterval = 20 * s.retryInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		s.log.Error("Entity write abandoned", "key", key, "attempts", attempts, "error", err)
		return fmt.Errorf("persist %s after %d attempts: %w", key, attempts, err)
	}
	return nil
}

func (s *Store[T]) activate(id string) (*cell, error) {
	c := s.cell(id)
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return c, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c, s.load(c, repositories.Key(s.namespace, id))
}

// load must be called with the cell write lock held.
func (s *Store[T]) load(c *cell, key string) error {
	if c.loaded {
		return nil
	}
	raw, err := s.repository.Get(key)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		c.raw = nil
	case err != nil:
		return fmt.Errorf("activate %s: %w", key, err)
	default:
		c.raw = raw
	}
	c.loaded = true
	s.log.Debug("Entity activated", "key", key, "exists", c.raw != nil)
	return nil
}

func (s *Store[T]) cell(id string) *cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		c = &cell{}
		s.cells[id] = c
	}
	return c
}

func (s *Store[T]) decode(raw []byte) (T, error) {
	var state T
	if err := cbor.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode %s record: %w", s.namespace, err)
	}
	return state, nil
}
