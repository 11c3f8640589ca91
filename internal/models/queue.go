package models

import (
	"fmt"
	"time"
)

// QueueKind identifies one of the three offline-pending action categories.
type QueueKind string

const (
	QueueKindMessage       QueueKind = "message"
	QueueKindContact       QueueKind = "contact"
	QueueKindContactUpdate QueueKind = "contact_update"
)

// QueueKinds lists every kind in sync-pass order.
var QueueKinds = []QueueKind{QueueKindMessage, QueueKindContact, QueueKindContactUpdate}

func (k QueueKind) Valid() bool {
	switch k {
	case QueueKindMessage, QueueKindContact, QueueKindContactUpdate:
		return true
	}
	return false
}

// QueueStatus is the lifecycle status of a queued record.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSent    QueueStatus = "sent"
	QueueStatusSaved   QueueStatus = "saved"
	QueueStatusUpdated QueueStatus = "updated"
	QueueStatusFailed  QueueStatus = "failed"
)

// SuccessStatus returns the terminal success status for a queue kind.
func SuccessStatus(kind QueueKind) QueueStatus {
	switch kind {
	case QueueKindContact:
		return QueueStatusSaved
	case QueueKindContactUpdate:
		return QueueStatusUpdated
	default:
		return QueueStatusSent
	}
}

// IsTerminalSuccess reports whether the status marks a confirmed remote write.
func (s QueueStatus) IsTerminalSuccess() bool {
	return s == QueueStatusSent || s == QueueStatusSaved || s == QueueStatusUpdated
}

// CanTransitionQueue is the single authoritative transition rule for queue
// records. Pending records may succeed or fail; failed records become pending
// again when a sync pass retries them. Confirmed records never move.
func CanTransitionQueue(kind QueueKind, from, to QueueStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case QueueStatusPending:
		return to == QueueStatusFailed || to == SuccessStatus(kind)
	case QueueStatusFailed:
		return to == QueueStatusPending
	default:
		return false
	}
}

// TransitionQueue validates and applies a status transition.
func TransitionQueue(kind QueueKind, from, to QueueStatus) (QueueStatus, error) {
	if !CanTransitionQueue(kind, from, to) {
		return from, fmt.Errorf("illegal queue transition %s -> %s for kind %s", from, to, kind)
	}
	return to, nil
}

// QueuedMessage is a message captured on-device that still has to reach the
// remote store. ID is a client-generated token, not the eventual server id,
// so a retried append is idempotent-safe on our side.
type QueuedMessage struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	Content    string      `json:"content"`
	SenderID   string      `json:"sender_id"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     QueueStatus `json:"status"`
	RetryCount int         `json:"retry_count"`
	LastError  string      `json:"last_error,omitempty"`
}

// QueuedContact is a contact saved while offline, scoped to one owner profile.
type QueuedContact struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Phone      string      `json:"phone"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     QueueStatus `json:"status"`
	RetryCount int         `json:"retry_count"`
	LastError  string      `json:"last_error,omitempty"`
}

// QueuedContactUpdate is a partial patch to an existing contact. Fields absent
// from Updates are left untouched by the sync pass, never nulled.
type QueuedContactUpdate struct {
	ID         string                 `json:"id"`
	OwnerID    string                 `json:"owner_id"`
	ContactID  string                 `json:"contact_id"`
	Updates    map[string]interface{} `json:"updates"`
	CreatedAt  time.Time              `json:"created_at"`
	Status     QueueStatus            `json:"status"`
	RetryCount int                    `json:"retry_count"`
	LastError  string                 `json:"last_error,omitempty"`
}
