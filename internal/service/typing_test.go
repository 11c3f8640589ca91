package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *typingRecorder) record(evt realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *typingRecorder) snapshot() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTypingFixture(t *testing.T, cfg TypingConfig) (*TypingCoordinator, *realtime.Loopback, *typingRecorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	transport := realtime.NewLoopback()
	rec := &typingRecorder{}
	_, err := transport.Subscribe(realtime.TypingTopic("c1"), rec.record)
	require.NoError(t, err)

	tc := NewTypingCoordinator(transport, "u1", "ada", cfg, logger)
	return tc, transport, rec
}

func shortTypingConfig() TypingConfig {
	return TypingConfig{
		Throttle:      50 * time.Millisecond,
		QuietPeriod:   120 * time.Millisecond,
		TTL:           150 * time.Millisecond,
		SweepInterval: 30 * time.Millisecond,
	}
}

func TestSetTypingThrottlesStarts(t *testing.T) {
	tc, _, rec := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()
	ctx := context.Background()

	// A burst of keystrokes inside the throttle window emits exactly once.
	for i := 0; i < 5; i++ {
		require.NoError(t, tc.SetTyping(ctx, "c1", true))
	}

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0].Doc["is_typing"])
	assert.Equal(t, "u1", events[0].Doc.String("user_id"))
	assert.Equal(t, "ada", events[0].Doc.String("username"))
}

func TestSetTypingEmitsAgainAfterThrottleWindow(t *testing.T) {
	tc, _, rec := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()
	ctx := context.Background()

	require.NoError(t, tc.SetTyping(ctx, "c1", true))
	time.Sleep(70 * time.Millisecond)
	require.NoError(t, tc.SetTyping(ctx, "c1", true))

	assert.Len(t, rec.snapshot(), 2)
}

func TestSetTypingStopEmitsImmediately(t *testing.T) {
	tc, _, rec := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()
	ctx := context.Background()

	require.NoError(t, tc.SetTyping(ctx, "c1", true))
	require.NoError(t, tc.SetTyping(ctx, "c1", false))

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, false, events[1].Doc["is_typing"])

	// The explicit stop cancelled the auto-stop; no third emission follows.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 2)
}

func TestAutoStopFiresAfterQuietPeriod(t *testing.T) {
	tc, _, rec := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()
	ctx := context.Background()

	require.NoError(t, tc.SetTyping(ctx, "c1", true))

	require.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) == 2 && events[1].Doc["is_typing"] == false
	}, time.Second, 10*time.Millisecond)
}

func TestKeystrokesPostponeAutoStop(t *testing.T) {
	tc, _, rec := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()
	ctx := context.Background()

	// Keep typing past the quiet period; suppressed keystrokes still push
	// the auto-stop out.
	require.NoError(t, tc.SetTyping(ctx, "c1", true))
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		require.NoError(t, tc.SetTyping(ctx, "c1", true))
	}

	for _, evt := range rec.snapshot() {
		assert.Equal(t, true, evt.Doc["is_typing"])
	}
}

func TestHandleRemoteTracksAndReplaces(t *testing.T) {
	tc, _, _ := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()

	evt := realtime.Event{
		Topic: realtime.TypingTopic("c1"),
		Doc: gateway.Doc{
			"chat_id":   "c1",
			"user_id":   "u2",
			"username":  "obi",
			"is_typing": true,
		},
	}
	tc.HandleRemote(evt)
	tc.HandleRemote(evt) // replace, not append

	typists := tc.ActiveTypists("c1")
	require.Len(t, typists, 1)
	assert.Equal(t, "obi", typists[0].Username)

	// Explicit stop clears the entry.
	evt.Doc["is_typing"] = false
	tc.HandleRemote(evt)
	assert.Empty(t, tc.ActiveTypists("c1"))
}

func TestHandleRemoteIgnoresOwnEcho(t *testing.T) {
	tc, _, _ := newTypingFixture(t, shortTypingConfig())
	defer tc.Stop()

	tc.HandleRemote(realtime.Event{Doc: gateway.Doc{
		"chat_id":   "c1",
		"user_id":   "u1",
		"is_typing": true,
	}})
	assert.Empty(t, tc.ActiveTypists("c1"))
}

func TestSweepExpiresStaleSignals(t *testing.T) {
	tc, _, _ := newTypingFixture(t, shortTypingConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tc.Start(ctx)
	defer tc.Stop()

	tc.HandleRemote(realtime.Event{Doc: gateway.Doc{
		"chat_id":   "c1",
		"user_id":   "u2",
		"is_typing": true,
	}})
	require.Len(t, tc.ActiveTypists("c1"), 1)

	// No stop ever arrives; the TTL sweep clears the indicator anyway.
	require.Eventually(t, func() bool {
		return len(tc.ActiveTypists("c1")) == 0
	}, time.Second, 20*time.Millisecond)
}

func TestTypingStopIsIdempotent(t *testing.T) {
	tc, _, _ := newTypingFixture(t, shortTypingConfig())
	tc.Start(context.Background())
	tc.Stop()

	require.NotPanics(t, tc.Stop)
}
