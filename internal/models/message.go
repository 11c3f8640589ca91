package models

import (
	"fmt"
	"time"
)

// DeliveryState is the per-recipient progression of a confirmed message.
type DeliveryState int

const (
	DeliverySent DeliveryState = iota
	DeliveryDelivered
	DeliverySeen
)

func (s DeliveryState) String() string {
	switch s {
	case DeliverySent:
		return "sent"
	case DeliveryDelivered:
		return "delivered"
	case DeliverySeen:
		return "seen"
	}
	return fmt.Sprintf("delivery(%d)", int(s))
}

// CanAdvanceDelivery reports whether a (message, recipient) pair may move from
// one state to another. The progression is strictly forward; an out-of-order
// "delivered" arriving after "seen" must not regress state.
func CanAdvanceDelivery(from, to DeliveryState) bool {
	return to > from
}

// AdvanceDelivery applies a transition, rejecting regressions at the boundary.
func AdvanceDelivery(from, to DeliveryState) (DeliveryState, error) {
	if !CanAdvanceDelivery(from, to) {
		return from, fmt.Errorf("illegal delivery transition %s -> %s", from, to)
	}
	return to, nil
}

// Message is the client's read-only projection of a message owned by the
// remote store. Ordering within a chat follows CreatedAt as assigned by the
// store, never the local optimistic timestamp.
type Message struct {
	ID          string            `json:"id"`
	ChatID      string            `json:"chat_id"`
	SenderID    string            `json:"sender_id"`
	Content     string            `json:"content"`
	CreatedAt   time.Time         `json:"created_at"`
	ReadBy      []string          `json:"read_by"`
	DeliveredTo []string          `json:"delivered_to"`
	Reactions   map[string]string `json:"reactions,omitempty"`
}

// ReadByUser reports whether the given participant is in the read set.
func (m *Message) ReadByUser(userID string) bool {
	return containsID(m.ReadBy, userID)
}

// DeliveredToUser reports whether the given participant is in the delivered set.
func (m *Message) DeliveredToUser(userID string) bool {
	return containsID(m.DeliveredTo, userID)
}

// DeriveDisplayStatus computes the sender-facing status to show for this
// message with respect to a single other participant. Read wins over
// delivered; anything else is merely sent.
func (m *Message) DeriveDisplayStatus(otherID string) DeliveryState {
	if m.ReadByUser(otherID) {
		return DeliverySeen
	}
	if m.DeliveredToUser(otherID) {
		return DeliveryDelivered
	}
	return DeliverySent
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
