// Package realtime carries the ephemeral change-feeds: per-chat message
// deltas, typing signals, and presence rows. Delivery is at-least-once with
// ordering guaranteed only within a single topic.
package realtime

import (
	"context"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
)

// EventType is the kind of delta carried on a topic.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event is one change-feed delta.
type Event struct {
	Type      EventType   `json:"type"`
	Topic     string      `json:"topic"`
	Doc       gateway.Doc `json:"doc"`
	Timestamp time.Time   `json:"timestamp"`
}

// Unsubscribe releases a subscription. It returns once the handle is gone;
// a few in-flight events may still arrive afterwards and must be dropped
// silently by the dispatcher.
type Unsubscribe func()

// Transport is the bidirectional realtime channel the engine is written
// against. Publish is fire-and-forget from the caller's perspective: an error
// is reported but never queued durably.
type Transport interface {
	Subscribe(topic string, onEvent func(Event)) (Unsubscribe, error)
	Publish(ctx context.Context, topic string, eventType EventType, doc gateway.Doc) error
}

// Topic layout helpers. Topics are slash-separated like document paths.

func MessagesTopic(chatID string) string { return "chats/" + chatID + "/messages" }
func TypingTopic(chatID string) string   { return "chats/" + chatID + "/typing" }
func PresenceTopic(userID string) string { return "presence/" + userID }
