package realtime

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChatHandlers receives the in-process republication of a chat's feeds.
// Any handler may be nil.
type ChatHandlers struct {
	OnMessage  func(Event)
	OnTyping   func(Event)
	OnPresence func(Event)
}

// ChatChannels bundles the three subscriptions backing one open chat view.
// The channels are independent while open, but are always released together.
type ChatChannels struct {
	chatID string

	mu     sync.Mutex
	closed bool
	unsubs []Unsubscribe
}

// Close releases every subscription in the bundle. It is synchronous and
// idempotent; events already in flight when it returns are discarded by the
// guard in the handlers.
func (c *ChatChannels) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (c *ChatChannels) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ChannelManager opens and tears down the realtime feeds for chat views.
// Leaking a bundle would keep delivering events to a detached view, so every
// open chat is tracked until closed.
type ChannelManager struct {
	transport Transport
	logger    *logrus.Logger

	mu   sync.Mutex
	open map[string]*ChatChannels
}

// NewChannelManager creates a channel manager over the given transport.
func NewChannelManager(transport Transport, logger *logrus.Logger) *ChannelManager {
	return &ChannelManager{
		transport: transport,
		logger:    logger,
		open:      make(map[string]*ChatChannels),
	}
}

// OpenChat subscribes to the message, typing, and presence feeds for a chat
// and republishes their events through the handlers. presenceUserID is the
// other participant whose presence row the view shows.
func (cm *ChannelManager) OpenChat(chatID, presenceUserID string, h ChatHandlers) (*ChatChannels, error) {
	cm.mu.Lock()
	if _, ok := cm.open[chatID]; ok {
		cm.mu.Unlock()
		return nil, fmt.Errorf("chat %s already open", chatID)
	}
	cm.mu.Unlock()

	bundle := &ChatChannels{chatID: chatID}

	// Wrap each handler so post-close deliveries become silent no-ops.
	guard := func(fn func(Event)) func(Event) {
		return func(evt Event) {
			if fn == nil || bundle.isClosed() {
				return
			}
			fn(evt)
		}
	}

	subscriptions := []struct {
		topic string
		fn    func(Event)
	}{
		{MessagesTopic(chatID), guard(h.OnMessage)},
		{TypingTopic(chatID), guard(h.OnTyping)},
		{PresenceTopic(presenceUserID), guard(h.OnPresence)},
	}

	for _, sub := range subscriptions {
		unsub, err := cm.transport.Subscribe(sub.topic, sub.fn)
		if err != nil {
			bundle.Close()
			return nil, fmt.Errorf("failed to subscribe %s: %w", sub.topic, err)
		}
		bundle.mu.Lock()
		bundle.unsubs = append(bundle.unsubs, unsub)
		bundle.mu.Unlock()
	}

	cm.mu.Lock()
	cm.open[chatID] = bundle
	cm.mu.Unlock()

	cm.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
	}).Debug("Opened realtime channels for chat")

	return bundle, nil
}

// CloseChat releases every subscription for a chat. Closing a chat that is
// not open is a no-op.
func (cm *ChannelManager) CloseChat(chatID string) {
	cm.mu.Lock()
	bundle, ok := cm.open[chatID]
	delete(cm.open, chatID)
	cm.mu.Unlock()

	if ok {
		bundle.Close()
		cm.logger.WithField("chat_id", chatID).Debug("Closed realtime channels for chat")
	}
}

// CloseAll tears down every open chat, for process shutdown.
func (cm *ChannelManager) CloseAll() {
	cm.mu.Lock()
	bundles := make([]*ChatChannels, 0, len(cm.open))
	for _, b := range cm.open {
		bundles = append(bundles, b)
	}
	cm.open = make(map[string]*ChatChannels)
	cm.mu.Unlock()

	for _, b := range bundles {
		b.Close()
	}
}

// OpenCount returns the number of chats with live channel bundles.
func (cm *ChannelManager) OpenCount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.open)
}
