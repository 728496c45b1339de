package runtime

import (
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type counter struct {
	Values    []int
	UpdatedAt time.Time
}

func newTestStore(t *testing.T) *Store[counter] {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewStore[counter](log, repositories.NewRecordRepository(db, log), "v1/counter", 3, time.Millisecond)
}

func TestStore_Create_Read(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Round(0)

	// Given a created entity
	_, err := store.Create(ctx, "c1", counter{Values: []int{1}, UpdatedAt: at}, nil)
	req.NoError(err)

	// When it is read
	got, err := store.Read(ctx, "c1")

	// Then
	req.NoError(err)
	req.Equal([]int{1}, got.Values)
	req.True(at.Equal(got.UpdatedAt))

	// And creating it again is refused
	_, err = store.Create(ctx, "c1", counter{}, nil)
	req.ErrorIs(err, errors.ErrAlreadyExists)
}

func TestStore_Mutate_Missing_Entity(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Mutate(context.Background(), "ghost", func(state *counter) error { return nil }, nil)

	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStore_Failed_Mutation_Keeps_Committed_State(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, "c1", counter{Values: []int{1}}, nil)
	req.NoError(err)

	// When a mutation changes the draft then fails
	_, err = store.Mutate(ctx, "c1", func(state *counter) error {
		state.Values = append(state.Values, 2)
		state.Values[0] = 42
		return errors.ErrInvalidState
	}, func(counter) { req.Fail("onCommit must not run") })

	// Then
	req.ErrorIs(err, errors.ErrInvalidState)
	got, err := store.Read(ctx, "c1")
	req.NoError(err)
	req.Equal([]int{1}, got.Values)
}

func TestStore_Read_Returns_A_Copy(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, "c1", counter{Values: []int{1}}, nil)
	req.NoError(err)

	got, err := store.Read(ctx, "c1")
	req.NoError(err)
	got.Values[0] = 99

	again, err := store.Read(ctx, "c1")
	req.NoError(err)
	req.Equal([]int{1}, again.Values)
}

func TestStore_Mutations_Are_Serialized(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, "c1", counter{}, nil)
	req.NoError(err)

	var committed []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Mutate(ctx, "c1", func(state *counter) error {
				state.Values = append(state.Values, i)
				return nil
			}, func(state counter) {
				// onCommit runs under the entity lock
				committed = append(committed, len(state.Values))
			})
			req.NoError(err)
		}(i)
	}
	wg.Wait()

	got, err := store.Read(ctx, "c1")
	req.NoError(err)
	req.Len(got.Values, 50)
	for i, size := range committed {
		req.Equal(i+1, size)
	}
}

func TestStore_Persist_Retries_Then_Succeeds(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIRecordRepository(ctrl)
	store := NewStore[counter](slog.Default(), repository, "v1/counter", 3, time.Millisecond)

	// Given a repository failing once
	repository.EXPECT().Get("v1/counter/c1").Return(nil, errors.ErrNotFound).Times(1)
	gomock.InOrder(
		repository.EXPECT().Put("v1/counter/c1", gomock.Any()).Return(fmt.Errorf("put: %w", errors.ErrConflict)),
		repository.EXPECT().Put("v1/counter/c1", gomock.Any()).Return(nil),
	)

	// When
	_, err := store.Create(context.Background(), "c1", counter{Values: []int{7}}, nil)

	// Then
	req.NoError(err)
	got, err := store.Read(context.Background(), "c1")
	req.NoError(err)
	req.Equal([]int{7}, got.Values)
}

func TestStore_Persist_Exhausted_Keeps_Entity_Absent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIRecordRepository(ctrl)
	store := NewStore[counter](slog.Default(), repository, "v1/counter", 2, time.Millisecond)

	repository.EXPECT().Get("v1/counter/c1").Return(nil, errors.ErrNotFound).Times(1)
	repository.EXPECT().Put("v1/counter/c1", gomock.Any()).Return(fmt.Errorf("disk full")).Times(3)

	_, err := store.Create(context.Background(), "c1", counter{Values: []int{7}}, nil)
	req.Error(err)

	_, err = store.Read(context.Background(), "c1")
	req.ErrorIs(err, errors.ErrNotFound)
}
