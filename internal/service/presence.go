package service

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"

	"github.com/sirupsen/logrus"
)

// PresenceTracker publishes our own foreground/background transitions and
// mirrors the presence of users we observe. Presence is fire-and-forget:
// a failed publish is logged, never queued.
type PresenceTracker struct {
	transport realtime.Transport
	logger    *logrus.Logger
	selfID    string

	mu      sync.Mutex
	known   map[string]models.Presence
	watches map[string]realtime.Unsubscribe
}

// NewPresenceTracker creates a tracker publishing under the given identity.
func NewPresenceTracker(transport realtime.Transport, selfID string, logger *logrus.Logger) *PresenceTracker {
	return &PresenceTracker{
		transport: transport,
		logger:    logger,
		selfID:    selfID,
		known:     make(map[string]models.Presence),
		watches:   make(map[string]realtime.Unsubscribe),
	}
}

// SetOnline publishes our presence. Called on app foreground/background and
// on connectivity edges.
func (pt *PresenceTracker) SetOnline(ctx context.Context, online bool) {
	doc := gateway.Doc{
		"user_id":      pt.selfID,
		"is_online":    online,
		"last_seen_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := pt.transport.Publish(ctx, realtime.PresenceTopic(pt.selfID), realtime.EventUpdated, doc); err != nil {
		pt.logger.WithError(err).WithField("online", online).Debug("Presence publish failed")
	}
}

// Track begins observing a user's presence. The callback fires on every
// update; the cached snapshot is replaced wholesale, never merged. Tracking
// an already-tracked user replaces the previous callback.
func (pt *PresenceTracker) Track(userID string, onChange func(models.Presence)) error {
	pt.mu.Lock()
	if unsub, ok := pt.watches[userID]; ok {
		delete(pt.watches, userID)
		pt.mu.Unlock()
		unsub()
		pt.mu.Lock()
	}
	pt.mu.Unlock()

	unsub, err := pt.transport.Subscribe(realtime.PresenceTopic(userID), func(evt realtime.Event) {
		p := presenceFromDoc(userID, evt.Doc)

		pt.mu.Lock()
		pt.known[userID] = p
		pt.mu.Unlock()

		if onChange != nil {
			onChange(p)
		}
	})
	if err != nil {
		return err
	}

	pt.mu.Lock()
	pt.watches[userID] = unsub
	pt.mu.Unlock()
	return nil
}

// Untrack stops observing a user. The last known snapshot stays readable.
func (pt *PresenceTracker) Untrack(userID string) {
	pt.mu.Lock()
	unsub, ok := pt.watches[userID]
	delete(pt.watches, userID)
	pt.mu.Unlock()
	if ok {
		unsub()
	}
}

// Presence returns the last observed snapshot for a user.
func (pt *PresenceTracker) Presence(userID string) (models.Presence, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.known[userID]
	return p, ok
}

// Close drops all watches.
func (pt *PresenceTracker) Close() {
	pt.mu.Lock()
	watches := pt.watches
	pt.watches = make(map[string]realtime.Unsubscribe)
	pt.mu.Unlock()

	for _, unsub := range watches {
		unsub()
	}
}

func presenceFromDoc(userID string, doc gateway.Doc) models.Presence {
	p := models.Presence{UserID: userID}
	p.IsOnline, _ = doc["is_online"].(bool)
	if raw := doc.String("last_seen_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			p.LastSeenAt = ts
		}
	}
	return p
}
