package service

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/network"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/validation"

	"github.com/sirupsen/logrus"
)

// Engine is the consumer-facing facade. It validates input, enqueues
// durably, and opportunistically kicks a sync pass when the network is up.
// Every write survives a crash the moment the enqueue call returns.
type Engine struct {
	queue     *queue.Store
	sync      *SyncEngine
	publisher *StatusPublisher
	monitor   *network.Monitor
	typing    *TypingCoordinator
	presence  *PresenceTracker
	statuses  *StatusTracker
	channels  *realtime.ChannelManager
	logger    *logrus.Logger

	selfID string

	unwatch func()
	wg      sync.WaitGroup
}

// EngineDeps bundles the collaborators an Engine wires together.
type EngineDeps struct {
	Queue     *queue.Store
	Sync      *SyncEngine
	Publisher *StatusPublisher
	Monitor   *network.Monitor
	Typing    *TypingCoordinator
	Presence  *PresenceTracker
	Statuses  *StatusTracker
	Channels  *realtime.ChannelManager
	SelfID    string
	Logger    *logrus.Logger
}

// NewEngine wires the facade and hooks the connectivity edge: the moment the
// monitor reports online, a sync pass starts.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		queue:     deps.Queue,
		sync:      deps.Sync,
		publisher: deps.Publisher,
		monitor:   deps.Monitor,
		typing:    deps.Typing,
		presence:  deps.Presence,
		statuses:  deps.Statuses,
		channels:  deps.Channels,
		logger:    deps.Logger,
		selfID:    deps.SelfID,
	}
	e.unwatch = deps.Monitor.OnChange(func(online bool) {
		if online {
			e.kickSync()
		}
	})
	return e
}

// SendMessage validates and durably enqueues an outgoing message, then
// triggers a sync pass if online. The returned record already carries its
// client-unique id.
func (e *Engine) SendMessage(ctx context.Context, chatID, content string) (models.QueuedMessage, error) {
	if err := validation.ValidateID("chat_id", chatID); err != nil {
		return models.QueuedMessage{}, err
	}
	if err := validation.ValidateMessageContent(content); err != nil {
		return models.QueuedMessage{}, err
	}

	msg, err := e.queue.EnqueueMessage(ctx, chatID, content, e.selfID)
	if err != nil {
		return models.QueuedMessage{}, err
	}
	metrics.IncrementCounter("enqueued_total", map[string]string{"kind": string(models.QueueKindMessage)}, "Records enqueued")
	e.afterEnqueue(ctx)
	return msg, nil
}

// SaveContact validates and durably enqueues a new contact.
func (e *Engine) SaveContact(ctx context.Context, firstName, lastName, phone string) (models.QueuedContact, error) {
	if err := validation.ValidatePhoneNumber(phone); err != nil {
		return models.QueuedContact{}, err
	}

	contact, err := e.queue.EnqueueContact(ctx, e.selfID, firstName, lastName, phone)
	if err != nil {
		return models.QueuedContact{}, err
	}
	metrics.IncrementCounter("enqueued_total", map[string]string{"kind": string(models.QueueKindContact)}, "Records enqueued")
	e.afterEnqueue(ctx)
	return contact, nil
}

// UpdateContact validates and durably enqueues a partial contact edit. Only
// the provided fields are ever touched remotely.
func (e *Engine) UpdateContact(ctx context.Context, contactID string, updates map[string]interface{}) (models.QueuedContactUpdate, error) {
	if err := validation.ValidateID("contact_id", contactID); err != nil {
		return models.QueuedContactUpdate{}, err
	}
	if err := validation.ValidateContactUpdates(updates); err != nil {
		return models.QueuedContactUpdate{}, err
	}

	upd, err := e.queue.EnqueueContactUpdate(ctx, e.selfID, contactID, updates)
	if err != nil {
		return models.QueuedContactUpdate{}, err
	}
	metrics.IncrementCounter("enqueued_total", map[string]string{"kind": string(models.QueueKindContactUpdate)}, "Records enqueued")
	e.afterEnqueue(ctx)
	return upd, nil
}

func (e *Engine) afterEnqueue(ctx context.Context) {
	e.publisher.Recompute(ctx, false)
	if e.monitor.IsOnline() {
		e.kickSync()
	}
}

// kickSync runs a sync pass in the background. The engine's in-flight guard
// collapses overlapping kicks into one pass.
func (e *Engine) kickSync() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
		defer cancel()
		if err := e.sync.SyncAll(ctx); err != nil {
			e.logger.WithError(err).Debug("Background sync pass failed")
		}
	}()
}

// SyncNow runs a sync pass synchronously.
func (e *Engine) SyncNow(ctx context.Context) error {
	return e.sync.SyncAll(ctx)
}

// IsSyncing reports whether a pass is currently in flight.
func (e *Engine) IsSyncing() bool {
	return e.sync.IsSyncing()
}

// ClearFailed discards failed records of one kind. This is the only path
// that removes a record without remote confirmation.
func (e *Engine) ClearFailed(ctx context.Context, kind models.QueueKind) (int, error) {
	n, err := e.queue.ClearFailed(ctx, kind)
	if err != nil {
		return 0, err
	}
	e.publisher.Recompute(ctx, false)
	return n, nil
}

// Status returns the current sync status snapshot.
func (e *Engine) Status() models.SyncStatus {
	return e.publisher.Current()
}

// SubscribeStatus registers a status listener and returns its removal func.
func (e *Engine) SubscribeStatus(fn func(models.SyncStatus)) func() {
	return e.publisher.Subscribe(fn)
}

// SetConnectivity feeds a connectivity observation into the monitor. The
// offline-to-online edge triggers a sync pass via the change hook.
func (e *Engine) SetConnectivity(online bool) {
	e.monitor.SetOnline(online)
}

// SendTyping forwards a typing signal for a chat through the throttle.
func (e *Engine) SendTyping(ctx context.Context, chatID string, isTyping bool) error {
	return e.typing.SetTyping(ctx, chatID, isTyping)
}

// ActiveTypists lists users currently typing in a chat.
func (e *Engine) ActiveTypists(chatID string) []models.TypingSignal {
	return e.typing.ActiveTypists(chatID)
}

// SetForeground publishes our own presence transition.
func (e *Engine) SetForeground(ctx context.Context, foreground bool) {
	e.presence.SetOnline(ctx, foreground)
}

// TrackPresence begins observing another user's presence.
func (e *Engine) TrackPresence(userID string, onChange func(models.Presence)) error {
	return e.presence.Track(userID, onChange)
}

// PresenceOf returns the last observed presence snapshot for a user.
func (e *Engine) PresenceOf(userID string) (models.Presence, bool) {
	return e.presence.Presence(userID)
}

// MarkChatDelivered records delivery of every foreign message in a chat.
// Called when the chat list loads while online.
func (e *Engine) MarkChatDelivered(ctx context.Context, chatID string) error {
	return e.statuses.MarkChatDelivered(ctx, chatID)
}

// MarkMessageSeen records that one message was rendered in a focused chat.
func (e *Engine) MarkMessageSeen(ctx context.Context, chatID, messageID string) error {
	return e.statuses.MarkMessageSeen(ctx, chatID, messageID)
}

// MarkChatRead records every unread foreign message in a chat as seen.
func (e *Engine) MarkChatRead(ctx context.Context, chatID string) error {
	return e.statuses.MarkChatRead(ctx, chatID)
}

// DisplayStatus derives the single status label to render for a message.
func (e *Engine) DisplayStatus(msg *models.Message, otherUserID string) models.DeliveryState {
	return e.statuses.DeriveDisplayStatus(msg, otherUserID)
}

// OpenChat subscribes the message, typing, and presence channels for a chat
// as one unit. Inbound typing and delivery observations are folded into the
// coordinator and tracker before the caller's handlers run.
func (e *Engine) OpenChat(chatID, otherUserID string, h realtime.ChatHandlers) (*realtime.ChatChannels, error) {
	wrapped := realtime.ChatHandlers{
		OnMessage: func(evt realtime.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
			e.statuses.ObserveRemoteMessage(ctx, evt.Doc)
			cancel()
			if h.OnMessage != nil {
				h.OnMessage(evt)
			}
		},
		OnTyping: func(evt realtime.Event) {
			e.typing.HandleRemote(evt)
			if h.OnTyping != nil {
				h.OnTyping(evt)
			}
		},
		OnPresence: h.OnPresence,
	}
	return e.channels.OpenChat(chatID, otherUserID, wrapped)
}

// CloseChat releases a chat's channel bundle.
func (e *Engine) CloseChat(chatID string) {
	e.channels.CloseChat(chatID)
}

// Close detaches the connectivity hook, closes all channels, and waits for
// background passes to drain.
func (e *Engine) Close() {
	if e.unwatch != nil {
		e.unwatch()
	}
	e.channels.CloseAll()
	e.presence.Close()
	e.wg.Wait()
}
