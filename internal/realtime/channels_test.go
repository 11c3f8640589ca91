package realtime

import (
	"context"
	"testing"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*ChannelManager, *Loopback) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	transport := NewLoopback()
	return NewChannelManager(transport, logger), transport
}

func TestOpenChatRoutesAllThreeFeeds(t *testing.T) {
	cm, transport := newTestManager()
	ctx := context.Background()

	var messages, typing, presence int
	_, err := cm.OpenChat("c1", "u2", ChatHandlers{
		OnMessage:  func(Event) { messages++ },
		OnTyping:   func(Event) { typing++ },
		OnPresence: func(Event) { presence++ },
	})
	require.NoError(t, err)

	require.NoError(t, transport.Publish(ctx, MessagesTopic("c1"), EventAdded, gateway.Doc{}))
	require.NoError(t, transport.Publish(ctx, TypingTopic("c1"), EventUpdated, gateway.Doc{}))
	require.NoError(t, transport.Publish(ctx, PresenceTopic("u2"), EventUpdated, gateway.Doc{}))

	assert.Equal(t, 1, messages)
	assert.Equal(t, 1, typing)
	assert.Equal(t, 1, presence)
	assert.Equal(t, 1, cm.OpenCount())
}

func TestOpenChatTwiceFails(t *testing.T) {
	cm, _ := newTestManager()

	_, err := cm.OpenChat("c1", "u2", ChatHandlers{})
	require.NoError(t, err)

	bundle, err := cm.OpenChat("c1", "u2", ChatHandlers{})
	assert.Error(t, err)
	assert.Nil(t, bundle)
}

func TestCloseChatReleasesAllFeedsTogether(t *testing.T) {
	cm, transport := newTestManager()
	ctx := context.Background()

	var messages, typing int
	_, err := cm.OpenChat("c1", "u2", ChatHandlers{
		OnMessage: func(Event) { messages++ },
		OnTyping:  func(Event) { typing++ },
	})
	require.NoError(t, err)

	cm.CloseChat("c1")

	require.NoError(t, transport.Publish(ctx, MessagesTopic("c1"), EventAdded, gateway.Doc{}))
	require.NoError(t, transport.Publish(ctx, TypingTopic("c1"), EventUpdated, gateway.Doc{}))

	assert.Zero(t, messages)
	assert.Zero(t, typing)
	assert.Zero(t, cm.OpenCount())

	// Reopening after close works.
	_, err = cm.OpenChat("c1", "u2", ChatHandlers{})
	assert.NoError(t, err)
}

func TestCloseChatIdempotent(t *testing.T) {
	cm, _ := newTestManager()

	bundle, err := cm.OpenChat("c1", "u2", ChatHandlers{})
	require.NoError(t, err)

	cm.CloseChat("c1")
	cm.CloseChat("c1")
	bundle.Close()
}

func TestCloseAll(t *testing.T) {
	cm, transport := newTestManager()
	ctx := context.Background()

	calls := 0
	for _, chatID := range []string{"c1", "c2", "c3"} {
		_, err := cm.OpenChat(chatID, "u2", ChatHandlers{
			OnMessage: func(Event) { calls++ },
		})
		require.NoError(t, err)
	}

	cm.CloseAll()

	for _, chatID := range []string{"c1", "c2", "c3"} {
		require.NoError(t, transport.Publish(ctx, MessagesTopic(chatID), EventAdded, gateway.Doc{}))
	}

	assert.Zero(t, calls)
	assert.Zero(t, cm.OpenCount())
}
