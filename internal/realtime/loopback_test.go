package realtime

import (
	"context"
	"testing"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesTopicSubscribers(t *testing.T) {
	l := NewLoopback()
	ctx := context.Background()

	var got []Event
	_, err := l.Subscribe(MessagesTopic("c1"), func(evt Event) { got = append(got, evt) })
	require.NoError(t, err)

	var other []Event
	_, err = l.Subscribe(MessagesTopic("c2"), func(evt Event) { other = append(other, evt) })
	require.NoError(t, err)

	require.NoError(t, l.Publish(ctx, MessagesTopic("c1"), EventAdded, gateway.Doc{"content": "hi"}))

	require.Len(t, got, 1)
	assert.Equal(t, EventAdded, got[0].Type)
	assert.Equal(t, "hi", got[0].Doc.String("content"))
	assert.Empty(t, other)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	l := NewLoopback()
	ctx := context.Background()

	calls := 0
	unsub, err := l.Subscribe(TypingTopic("c1"), func(Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, l.Publish(ctx, TypingTopic("c1"), EventUpdated, gateway.Doc{}))
	unsub()
	require.NoError(t, l.Publish(ctx, TypingTopic("c1"), EventUpdated, gateway.Doc{}))

	assert.Equal(t, 1, calls)
}

func TestPublishedDocIsIsolated(t *testing.T) {
	l := NewLoopback()
	ctx := context.Background()

	var received gateway.Doc
	_, err := l.Subscribe(PresenceTopic("u1"), func(evt Event) { received = evt.Doc })
	require.NoError(t, err)

	doc := gateway.Doc{"is_online": true}
	require.NoError(t, l.Publish(ctx, PresenceTopic("u1"), EventUpdated, doc))

	doc["is_online"] = false
	assert.Equal(t, true, received["is_online"])
}

func TestPublishCancelledContext(t *testing.T) {
	l := NewLoopback()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Publish(ctx, MessagesTopic("c1"), EventAdded, gateway.Doc{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "chats/c1/messages", MessagesTopic("c1"))
	assert.Equal(t, "chats/c1/typing", TypingTopic("c1"))
	assert.Equal(t, "presence/u1", PresenceTopic("u1"))
}
