package services

import (
	"chat-sync/actors"
	"chat-sync/domain"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// flakyRepository fails the puts its hook selects.
type flakyRepository struct {
	repositories.IRecordRepository
	mu   sync.Mutex
	fail func(key string) bool
}

func (f *flakyRepository) Put(key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail != nil && fail(key) {
		return fmt.Errorf("disk full")
	}
	return f.IRecordRepository.Put(key, value)
}

func (f *flakyRepository) failWhen(fail func(key string) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func under(namespace string) func(string) bool {
	return func(key string) bool { return strings.HasPrefix(key, namespace+"/") }
}

type fixture struct {
	repository    *flakyRepository
	conversations *actors.ConversationActor
	messages      *actors.MessageActor
	users         *actors.UserActor
	repair        *MembershipRepair
	chat          IChatService
	media         IMediaService
	profiles      IUserService
}

func newFixture(t *testing.T) fixture {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository := &flakyRepository{IRecordRepository: repositories.NewRecordRepository(db, log)}
	clock := runtime.NewMonotonicClock()
	hub := func() *runtime.Hub { return runtime.NewHub(log, time.Minute, 3) }

	conversations := actors.NewConversationActor(log,
		runtime.NewStore[domain.Conversation](log, repository, repositories.ConversationNamespace, 1, time.Millisecond), hub(), clock)
	messages := actors.NewMessageActor(log,
		runtime.NewStore[domain.Message](log, repository, repositories.MessageNamespace, 1, time.Millisecond), hub(), clock)
	users := actors.NewUserActor(log,
		runtime.NewStore[domain.User](log, repository, repositories.UserNamespace, 1, time.Millisecond), hub(), clock)
	repair := NewMembershipRepair(log, conversations, users)
	media := NewMediaService(log, repositories.NewMediaRepository(db, log), MediaLimits{
		Image: 1024, Audio: 1024, Video: 1024, ProfilePicture: 512,
	})

	return fixture{
		repository:    repository,
		conversations: conversations,
		messages:      messages,
		users:         users,
		repair:        repair,
		chat:          NewChatService(log, conversations, messages, users, repair, clock),
		media:         media,
		profiles:      NewUserService(log, users, media),
	}
}

func (f fixture) register(t *testing.T, ids ...domain.UserID) {
	for _, id := range ids {
		_, _, err := f.users.Register(context.Background(), id, string(id))
		require.NoError(t, err)
	}
}

func (f fixture) conversationsOf(t *testing.T, id domain.UserID) []domain.ConversationID {
	ids, err := f.users.Conversations(context.Background(), id)
	require.NoError(t, err)
	return ids
}

// png is the smallest payload mimetype detects as image/png.
var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
