package chat

import (
	"context"
	"sync"

	"github.com/mmynk/picadito/internal/models"
)

// Broker fans messages out to live subscribers of a match conversation.
// It holds no history; the durable log lives in storage.ChatStore.
type Broker interface {
	Publish(ctx context.Context, matchID string, msg *models.ChatMessage) error

	// Subscribe calls onMessage for every message published to matchID until
	// the returned function is called. onMessage runs on a broker goroutine.
	Subscribe(ctx context.Context, matchID string, onMessage func(*models.ChatMessage)) (unsubscribe func(), err error)

	Close() error
}

// MemoryBroker is an in-process Broker for a single server instance.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]*subscriber
}

type subscriber struct {
	ch   chan *models.ChatMessage
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]*subscriber)}
}

// Publish delivers msg to every current subscriber of matchID, waiting for
// slow subscribers until ctx is done.
func (b *MemoryBroker) Publish(ctx context.Context, matchID string, msg *models.ChatMessage) error {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs[matchID]))
	for _, s := range b.subs[matchID] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, matchID string, onMessage func(*models.ChatMessage)) (func(), error) {
	s := &subscriber{
		ch:   make(chan *models.ChatMessage, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[matchID] == nil {
		b.subs[matchID] = make(map[int]*subscriber)
	}
	b.subs[matchID][id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-s.ch:
				onMessage(msg)
			case <-s.done:
				return
			}
		}
	}()

	return func() {
		b.mu.Lock()
		delete(b.subs[matchID], id)
		if len(b.subs[matchID]) == 0 {
			delete(b.subs, matchID)
		}
		b.mu.Unlock()
		s.stop()
	}, nil
}

// Close stops every subscriber.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for matchID, subs := range b.subs {
		for _, s := range subs {
			s.stop()
		}
		delete(b.subs, matchID)
	}
	return nil
}
