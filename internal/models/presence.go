package models

import "time"

// Presence is one user's online flag plus last-seen timestamp. It is a
// last-write-wins projection, never queued.
type Presence struct {
	UserID     string    `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TypingSignal is an ephemeral indicator keyed by (chat, user). It has no
// persistent identity and is valid only while fresh.
type TypingSignal struct {
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the signal is older than ttl at the given instant.
func (t TypingSignal) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.UpdatedAt) > ttl
}
