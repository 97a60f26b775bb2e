package matchmaking

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/picadito/internal/chat"
	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/queue"
	"github.com/mmynk/picadito/internal/storage"
	"github.com/mmynk/picadito/internal/storage/sqlite"
)

type testEnv struct {
	store   *sqlite.SQLiteStore
	queue   *queue.Repository
	channel *chat.Channel
	engine  *Engine
}

type envOptions struct {
	wrapStore func(Store) Store
	chatStore storage.ChatStore
	clock     clock.Clock
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "matchmaking.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var engineStore Store = store
	if opts.wrapStore != nil {
		engineStore = opts.wrapStore(store)
	}
	var chatStore storage.ChatStore = store
	if opts.chatStore != nil {
		chatStore = opts.chatStore
	}

	emitter := events.NewEmitter(nil, nil)
	q := queue.NewRepository(store, opts.clock, time.Hour, emitter, nil)
	channel := chat.NewChannel(chatStore, chat.NewMemoryBroker())
	engine := NewEngine(q, engineStore, chat.NewNotifier(channel, nil), Config{
		Clock:  opts.clock,
		Events: emitter,
	})
	return &testEnv{store: store, queue: q, channel: channel, engine: engine}
}

func (e *testEnv) join(t *testing.T, userID string, prefs models.Preferences) *models.QueueEntry {
	t.Helper()
	entry, err := e.queue.Join(context.Background(), userID, prefs)
	if err != nil {
		t.Fatalf("Join %s failed: %v", userID, err)
	}
	return entry
}

// failingChatStore refuses every write.
type failingChatStore struct{}

var errChatDown = errors.New("chat store down")

func (failingChatStore) AppendMessage(context.Context, *models.ChatMessage) error { return errChatDown }

func (failingChatStore) ListMessages(context.Context, string, int) ([]*models.ChatMessage, error) {
	return nil, errChatDown
}

func (failingChatStore) MarkRead(context.Context, string, string) (int64, error) {
	return 0, errChatDown
}

func (failingChatStore) CountUnread(context.Context, string, string) (int, error) {
	return 0, errChatDown
}
