package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// StatusTracker maintains the per-recipient delivery state machine. Delivered
// and seen are self-reported by the recipient's client: this tracker runs on
// the recipient side when acknowledging, and on the sender side when deriving
// display status from the mirrored message.
type StatusTracker struct {
	remote gateway.RemoteStore
	logger *logrus.Logger

	// selfID is this device's participant id; acknowledgements are recorded
	// under it.
	selfID string

	mu     sync.Mutex
	states map[string]map[string]models.DeliveryState // messageID -> recipient -> state
}

// NewStatusTracker creates a tracker acting on behalf of selfID.
func NewStatusTracker(remote gateway.RemoteStore, selfID string, logger *logrus.Logger) *StatusTracker {
	return &StatusTracker{
		remote: remote,
		logger: logger,
		selfID: selfID,
		states: make(map[string]map[string]models.DeliveryState),
	}
}

// State returns the tracked state for a (message, recipient) pair, defaulting
// to sent for any message the tracker has seen no acknowledgement for.
func (t *StatusTracker) State(messageID, recipientID string) models.DeliveryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if perRecipient, ok := t.states[messageID]; ok {
		if s, ok := perRecipient[recipientID]; ok {
			return s
		}
	}
	return models.DeliverySent
}

// Advance records a state for a (message, recipient) pair. Regressions are
// rejected silently: an out-of-order "delivered" after "seen" is a no-op.
func (t *StatusTracker) Advance(messageID, recipientID string, to models.DeliveryState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	perRecipient, ok := t.states[messageID]
	if !ok {
		perRecipient = make(map[string]models.DeliveryState)
		t.states[messageID] = perRecipient
	}
	from, tracked := perRecipient[recipientID]
	if !tracked {
		from = models.DeliverySent
	}
	if !models.CanAdvanceDelivery(from, to) {
		return false
	}
	perRecipient[recipientID] = to
	return true
}

// MarkChatDelivered acknowledges every message in the chat addressed to this
// client that it has not yet acknowledged. Runs as soon as the chat loads,
// before the user opens it.
func (t *StatusTracker) MarkChatDelivered(ctx context.Context, chatID string) error {
	ctx, span := tracing.StartSpan(ctx, "status.mark_chat_delivered",
		attribute.String("chat_id", chatID))
	defer span.End()

	msgs, err := t.loadChat(ctx, chatID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, msg := range msgs {
		if msg.SenderID == t.selfID || msg.DeliveredToUser(t.selfID) {
			continue
		}
		if err := t.patchMembership(ctx, chatID, msg, "delivered_to", msg.DeliveredTo); err != nil {
			// Partial completion is fine; the next chat open retries.
			if firstErr == nil {
				firstErr = err
			}
			t.logger.WithError(err).WithField("message_id", msg.ID).Warn("Delivered acknowledgement failed")
			continue
		}
		t.Advance(msg.ID, t.selfID, models.DeliveryDelivered)
	}
	return firstErr
}

// MarkMessageSeen marks a single rendered message as seen by this client.
// It does not retroactively mark earlier messages.
func (t *StatusTracker) MarkMessageSeen(ctx context.Context, chatID, messageID string) error {
	docPath := messagePath(chatID, messageID)
	doc, err := t.remote.Get(ctx, docPath)
	if err != nil {
		return fmt.Errorf("failed to load message %s: %w", messageID, err)
	}
	msg := docToMessage(doc)
	if msg.SenderID == t.selfID || msg.ReadByUser(t.selfID) {
		return nil
	}
	if err := t.patchMembership(ctx, chatID, msg, "read_by", msg.ReadBy); err != nil {
		return err
	}
	t.Advance(messageID, t.selfID, models.DeliverySeen)
	return nil
}

// MarkChatRead marks every message from the other party not yet in this
// client's read set, one message at a time. There is no atomic mark-all:
// a failure partway leaves some messages read and some not, and the next
// open self-heals.
func (t *StatusTracker) MarkChatRead(ctx context.Context, chatID string) error {
	ctx, span := tracing.StartSpan(ctx, "status.mark_chat_read",
		attribute.String("chat_id", chatID))
	defer span.End()

	msgs, err := t.loadChat(ctx, chatID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, msg := range msgs {
		if msg.SenderID == t.selfID || msg.ReadByUser(t.selfID) {
			continue
		}
		if err := t.patchMembership(ctx, chatID, msg, "read_by", msg.ReadBy); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			t.logger.WithError(err).WithField("message_id", msg.ID).Warn("Read acknowledgement failed")
			continue
		}
		t.Advance(msg.ID, t.selfID, models.DeliverySeen)
	}
	return firstErr
}

// DeriveDisplayStatus computes the sender-facing status for a message with
// respect to one other participant. Read wins over delivered.
func (t *StatusTracker) DeriveDisplayStatus(msg *models.Message, otherID string) models.DeliveryState {
	return msg.DeriveDisplayStatus(otherID)
}

// ObserveRemoteMessage folds a realtime message event into the tracked state,
// acknowledging delivery if the message is addressed to this client.
func (t *StatusTracker) ObserveRemoteMessage(ctx context.Context, evt gateway.Doc) {
	msg := docToMessage(evt)
	if msg.ID == "" || msg.SenderID == t.selfID {
		return
	}
	if msg.DeliveredToUser(t.selfID) {
		t.Advance(msg.ID, t.selfID, models.DeliveryDelivered)
		return
	}
	if err := t.patchMembership(ctx, msg.ChatID, msg, "delivered_to", msg.DeliveredTo); err != nil {
		t.logger.WithError(err).WithField("message_id", msg.ID).Warn("Realtime delivered acknowledgement failed")
		return
	}
	t.Advance(msg.ID, t.selfID, models.DeliveryDelivered)
}

func (t *StatusTracker) loadChat(ctx context.Context, chatID string) ([]*models.Message, error) {
	docs, err := t.remote.Query(ctx, "chats/"+chatID+"/messages")
	if err != nil {
		return nil, fmt.Errorf("failed to load chat %s: %w", chatID, err)
	}
	msgs := make([]*models.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, docToMessage(doc))
	}
	return msgs, nil
}

// patchMembership adds selfID to a membership set field via a partial patch
// carrying only that field.
func (t *StatusTracker) patchMembership(ctx context.Context, chatID string, msg *models.Message, field string, current []string) error {
	updated := make([]string, 0, len(current)+1)
	updated = append(updated, current...)
	updated = append(updated, t.selfID)
	return t.remote.Patch(ctx, messagePath(chatID, msg.ID), gateway.Doc{field: updated})
}

func messagePath(chatID, messageID string) string {
	return "chats/" + chatID + "/messages/" + messageID
}

func docToMessage(doc gateway.Doc) *models.Message {
	msg := &models.Message{
		ID:       doc.String("id"),
		ChatID:   doc.String("chat_id"),
		SenderID: doc.String("sender_id"),
		Content:  doc.String("content"),
	}
	if ts, ok := doc["created_at"].(time.Time); ok {
		msg.CreatedAt = ts
	}
	msg.ReadBy = toStringSlice(doc["read_by"])
	msg.DeliveredTo = toStringSlice(doc["delivered_to"])
	return msg
}

func toStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
