package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
)

// Loopback is an in-process Transport: published events are dispatched
// synchronously to local subscribers of the same topic. It backs tests and
// the daemon's standalone mode, where sender and receiver share a process.
type Loopback struct {
	mu   sync.RWMutex
	subs map[int]*loopbackSub
	next int
}

type loopbackSub struct {
	topic   string
	onEvent func(Event)
	closed  bool
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[int]*loopbackSub)}
}

// Subscribe registers a handler for one topic.
func (l *Loopback) Subscribe(topic string, onEvent func(Event)) (Unsubscribe, error) {
	l.mu.Lock()
	id := l.next
	l.next++
	sub := &loopbackSub{topic: topic, onEvent: onEvent}
	l.subs[id] = sub
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		sub.closed = true
		delete(l.subs, id)
		l.mu.Unlock()
	}, nil
}

// Publish dispatches the event to every live subscriber of the topic.
func (l *Loopback) Publish(ctx context.Context, topic string, eventType EventType, doc gateway.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	evt := Event{
		Type:      eventType,
		Topic:     topic,
		Doc:       doc.Clone(),
		Timestamp: time.Now().UTC(),
	}

	l.mu.RLock()
	handlers := make([]*loopbackSub, 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.topic == topic {
			handlers = append(handlers, sub)
		}
	}
	l.mu.RUnlock()

	for _, sub := range handlers {
		// A subscriber cancelled between snapshot and dispatch gets nothing.
		l.mu.RLock()
		closed := sub.closed
		l.mu.RUnlock()
		if !closed {
			sub.onEvent(evt)
		}
	}
	return nil
}
