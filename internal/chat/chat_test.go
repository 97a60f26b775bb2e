package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/storage/sqlite"
)

func newTestChannel(t *testing.T) (*Channel, string) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	match := &models.Match{
		Format:     models.FiveASide,
		MaxPlayers: 10,
		HostID:     "host",
		Players:    []string{"host"},
		Status:     models.MatchOpen,
	}
	if err := store.CreateMatch(context.Background(), match); err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}

	broker := NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })
	return NewChannel(store, broker), match.ID
}

// collector gathers messages delivered to a subscriber.
type collector struct {
	mu   sync.Mutex
	msgs []*models.ChatMessage
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 16)}
}

func (c *collector) add(msg *models.ChatMessage) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Text
	}
	return out
}

func TestSendValidation(t *testing.T) {
	channel, matchID := newTestChannel(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		senderID string
		text     string
	}{
		{name: "empty", senderID: "ana", text: "   "},
		{name: "too long", senderID: "ana", text: strings.Repeat("a", MaxMessageLength+1)},
		{name: "no sender", senderID: "", text: "hola"},
		{name: "system impersonation", senderID: models.SystemSenderID, text: "hola"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := channel.Send(ctx, matchID, tt.senderID, "Ana", "", tt.text)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}

	// Length counts characters, not bytes.
	if _, err := channel.Send(ctx, matchID, "ana", "Ana", "", strings.Repeat("ñ", MaxMessageLength)); err != nil {
		t.Errorf("Expected %d runes to be accepted: %v", MaxMessageLength, err)
	}
}

func TestSendAndHistory(t *testing.T) {
	channel, matchID := newTestChannel(t)
	ctx := context.Background()

	for _, text := range []string{"uno", "dos", "tres"} {
		msg, err := channel.Send(ctx, matchID, "ana", "Ana", "", "  "+text+" ")
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if msg.ID == "" || msg.SentAt.IsZero() {
			t.Errorf("Expected store-assigned id and timestamp, got %+v", msg)
		}
	}

	history, err := channel.History(ctx, matchID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"uno", "dos", "tres"} {
		if history[i].Text != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, history[i].Text)
		}
	}

	latest, err := channel.History(ctx, matchID, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Text != "dos" || latest[1].Text != "tres" {
		t.Errorf("Expected the latest two oldest first, got %v", latest)
	}
}

func TestUnreadAndMarkRead(t *testing.T) {
	channel, matchID := newTestChannel(t)
	ctx := context.Background()

	for _, sender := range []string{"ana", "ana", "host"} {
		if _, err := channel.Send(ctx, matchID, sender, "", "", "hola"); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	unread, err := channel.UnreadCount(ctx, matchID, "host")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if unread != 2 {
		t.Errorf("Expected 2 unread for host, got %d", unread)
	}

	updated, err := channel.MarkRead(ctx, matchID, "host")
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("Expected 2 marked, got %d", updated)
	}
	if unread, _ := channel.UnreadCount(ctx, matchID, "host"); unread != 0 {
		t.Errorf("Expected 0 unread after MarkRead, got %d", unread)
	}
	if unread, _ := channel.UnreadCount(ctx, matchID, "ana"); unread != 1 {
		t.Errorf("Expected ana to keep her unread message, got %d", unread)
	}
}

func TestSubscribe(t *testing.T) {
	channel, matchID := newTestChannel(t)
	ctx := context.Background()

	c := newCollector()
	unsubscribe, err := channel.Subscribe(ctx, matchID, c.add)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if _, err := channel.Send(ctx, matchID, "ana", "Ana", "", "primero"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	c.wait(t)

	unsubscribe()
	if _, err := channel.Send(ctx, matchID, "ana", "Ana", "", "segundo"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case <-c.got:
		t.Error("Received a message after unsubscribing")
	case <-time.After(50 * time.Millisecond):
	}
	if texts := c.texts(); len(texts) != 1 || texts[0] != "primero" {
		t.Errorf("Expected only the first message, got %v", texts)
	}
}

func TestMemoryBrokerIsolatesMatches(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()
	ctx := context.Background()

	a, b := newCollector(), newCollector()
	if _, err := broker.Subscribe(ctx, "match-a", a.add); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := broker.Subscribe(ctx, "match-b", b.add); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := broker.Publish(ctx, "match-a", &models.ChatMessage{MatchID: "match-a", Text: "para a"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	a.wait(t)

	select {
	case <-b.got:
		t.Error("match-b received a message for match-a")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifier(t *testing.T) {
	channel, matchID := newTestChannel(t)
	ctx := context.Background()

	notice := NewNotifier(channel, nil).Announce(ctx, matchID, "Ana joined the match")
	if !notice.Delivered() {
		t.Fatalf("Expected delivery, got %v", notice.Err)
	}
	msg := notice.Message
	if !msg.IsSystem || msg.SenderID != models.SystemSenderID || msg.SenderName != models.SystemSenderName {
		t.Errorf("Expected a system message, got %+v", msg)
	}

	// System messages never count as unread.
	if unread, _ := channel.UnreadCount(ctx, matchID, "host"); unread != 0 {
		t.Errorf("Expected 0 unread, got %d", unread)
	}

	// A missing match fails the write but the notice absorbs the error.
	failed := NewNotifier(channel, nil).Announce(ctx, "missing-match", "hola")
	if failed.Delivered() || failed.Err == nil {
		t.Errorf("Expected a failed notice, got %+v", failed)
	}
	if failed.MatchID != "missing-match" || failed.Text != "hola" {
		t.Errorf("Notice should describe the attempted message, got %+v", failed)
	}
}
