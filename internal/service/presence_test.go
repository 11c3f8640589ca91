package service

import (
	"context"
	"testing"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresenceFixture() (*PresenceTracker, *realtime.Loopback) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	transport := realtime.NewLoopback()
	return NewPresenceTracker(transport, "u1", logger), transport
}

func TestSetOnlinePublishesOwnPresence(t *testing.T) {
	pt, transport := newPresenceFixture()
	ctx := context.Background()

	var got []realtime.Event
	_, err := transport.Subscribe(realtime.PresenceTopic("u1"), func(evt realtime.Event) {
		got = append(got, evt)
	})
	require.NoError(t, err)

	pt.SetOnline(ctx, true)
	pt.SetOnline(ctx, false)

	require.Len(t, got, 2)
	assert.Equal(t, true, got[0].Doc["is_online"])
	assert.Equal(t, false, got[1].Doc["is_online"])
	assert.NotEmpty(t, got[1].Doc.String("last_seen_at"))
}

func TestTrackReplacesSnapshotWholesale(t *testing.T) {
	pt, transport := newPresenceFixture()
	ctx := context.Background()

	var updates []models.Presence
	require.NoError(t, pt.Track("u2", func(p models.Presence) {
		updates = append(updates, p)
	}))

	lastSeen := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{
		"is_online":    true,
		"last_seen_at": lastSeen.Format(time.RFC3339),
	}))
	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{
		"is_online": false,
	}))

	require.Len(t, updates, 2)
	assert.True(t, updates[0].IsOnline)
	assert.Equal(t, lastSeen, updates[0].LastSeenAt)

	// The second update replaced the snapshot; the old last_seen_at is gone.
	current, ok := pt.Presence("u2")
	require.True(t, ok)
	assert.False(t, current.IsOnline)
	assert.True(t, current.LastSeenAt.IsZero())
}

func TestPresenceUnknownUser(t *testing.T) {
	pt, _ := newPresenceFixture()
	_, ok := pt.Presence("stranger")
	assert.False(t, ok)
}

func TestUntrackStopsUpdates(t *testing.T) {
	pt, transport := newPresenceFixture()
	ctx := context.Background()

	calls := 0
	require.NoError(t, pt.Track("u2", func(models.Presence) { calls++ }))

	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{"is_online": true}))
	pt.Untrack("u2")
	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{"is_online": false}))

	assert.Equal(t, 1, calls)

	// The last known snapshot survives untracking.
	p, ok := pt.Presence("u2")
	require.True(t, ok)
	assert.True(t, p.IsOnline)
}

func TestTrackAgainReplacesCallback(t *testing.T) {
	pt, transport := newPresenceFixture()
	ctx := context.Background()

	first, second := 0, 0
	require.NoError(t, pt.Track("u2", func(models.Presence) { first++ }))
	require.NoError(t, pt.Track("u2", func(models.Presence) { second++ }))

	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{"is_online": true}))

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestCloseDropsAllWatches(t *testing.T) {
	pt, transport := newPresenceFixture()
	ctx := context.Background()

	calls := 0
	require.NoError(t, pt.Track("u2", func(models.Presence) { calls++ }))
	require.NoError(t, pt.Track("u3", func(models.Presence) { calls++ }))

	pt.Close()

	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u2"), realtime.EventUpdated, gateway.Doc{"is_online": true}))
	require.NoError(t, transport.Publish(ctx, realtime.PresenceTopic("u3"), realtime.EventUpdated, gateway.Doc{"is_online": true}))

	assert.Zero(t, calls)
}
