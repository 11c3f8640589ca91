package models

import "time"

// SyncStatus aggregates queue depth and connectivity for the UI boundary.
// It is derived state, recomputed on every queue or connectivity change,
// and never persisted independently.
type SyncStatus struct {
	LastSyncAt      time.Time `json:"last_sync_at"`
	IsOnline        bool      `json:"is_online"`
	PendingMessages int       `json:"pending_messages"`
	PendingContacts int       `json:"pending_contacts"`
	PendingUpdates  int       `json:"pending_updates"`
}

// TotalPending is the combined depth across all three queue kinds.
func (s SyncStatus) TotalPending() int {
	return s.PendingMessages + s.PendingContacts + s.PendingUpdates
}

// Profile is the authenticated owner identity resolved from the remote store
// at the start of every sync pass.
type Profile struct {
	ID         string `json:"id"`
	AuthUserID string `json:"auth_user_id"`
	Username   string `json:"username"`
	Phone      string `json:"phone"`
}
