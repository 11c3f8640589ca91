package service

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/realtime"

	"github.com/sirupsen/logrus"
)

// TypingConfig holds the coordinator's timings.
type TypingConfig struct {
	Throttle      time.Duration
	QuietPeriod   time.Duration
	TTL           time.Duration
	SweepInterval time.Duration
}

// DefaultTypingConfig returns the stock timings.
func DefaultTypingConfig() TypingConfig {
	return TypingConfig{
		Throttle:      time.Duration(constants.DefaultTypingThrottleMs) * time.Millisecond,
		QuietPeriod:   time.Duration(constants.DefaultTypingQuietMs) * time.Millisecond,
		TTL:           time.Duration(constants.DefaultTypingTTLMs) * time.Millisecond,
		SweepInterval: time.Duration(constants.DefaultTypingSweepMs) * time.Millisecond,
	}
}

// TypingCoordinator throttles outbound typing signals and expires stale
// inbound ones. Signals are ephemeral: nothing here ever touches durable
// storage, and a failure to emit is logged and forgotten.
type TypingCoordinator struct {
	transport realtime.Transport
	config    TypingConfig
	logger    *logrus.Logger

	selfID   string
	username string

	mu        sync.Mutex
	lastStart map[string]time.Time                      // chatID -> last accepted start emission
	autoStop  map[string]*time.Timer                    // chatID -> pending quiet-period stop
	inbound   map[string]map[string]models.TypingSignal // chatID -> userID -> signal

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTypingCoordinator creates a coordinator emitting under the given identity.
func NewTypingCoordinator(transport realtime.Transport, selfID, username string, config TypingConfig, logger *logrus.Logger) *TypingCoordinator {
	return &TypingCoordinator{
		transport: transport,
		config:    config,
		logger:    logger,
		selfID:    selfID,
		username:  username,
		lastStart: make(map[string]time.Time),
		autoStop:  make(map[string]*time.Timer),
		inbound:   make(map[string]map[string]models.TypingSignal),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the staleness sweep.
func (tc *TypingCoordinator) Start(ctx context.Context) {
	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		ticker := time.NewTicker(tc.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tc.stopCh:
				return
			case <-ticker.C:
				tc.sweep()
			}
		}
	}()
}

// Stop halts the sweep and cancels pending auto-stops. Safe to call more
// than once.
func (tc *TypingCoordinator) Stop() {
	tc.stopOnce.Do(func() { close(tc.stopCh) })
	tc.wg.Wait()

	tc.mu.Lock()
	for chatID, timer := range tc.autoStop {
		timer.Stop()
		delete(tc.autoStop, chatID)
	}
	tc.mu.Unlock()
}

// SetTyping emits a typing signal for a chat. A start within the throttle
// window of the previous start to the same chat is dropped outright, not
// delayed. Every accepted start schedules an automatic stop after the quiet
// period unless another keystroke supersedes it. A stop always emits
// immediately and cancels any pending auto-stop.
func (tc *TypingCoordinator) SetTyping(ctx context.Context, chatID string, isTyping bool) error {
	if !isTyping {
		tc.cancelAutoStop(chatID)
		return tc.emit(ctx, chatID, false)
	}

	tc.mu.Lock()
	now := time.Now()
	if last, ok := tc.lastStart[chatID]; ok && now.Sub(last) < tc.config.Throttle {
		// Superseding keystroke: suppressed emission still pushes the
		// auto-stop out, otherwise a steady typist flickers.
		tc.rescheduleAutoStopLocked(chatID)
		tc.mu.Unlock()
		return nil
	}
	tc.lastStart[chatID] = now
	tc.rescheduleAutoStopLocked(chatID)
	tc.mu.Unlock()

	return tc.emit(ctx, chatID, true)
}

func (tc *TypingCoordinator) rescheduleAutoStopLocked(chatID string) {
	if timer, ok := tc.autoStop[chatID]; ok {
		timer.Stop()
	}
	tc.autoStop[chatID] = time.AfterFunc(tc.config.QuietPeriod, func() {
		tc.mu.Lock()
		delete(tc.autoStop, chatID)
		tc.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tc.emit(ctx, chatID, false); err != nil {
			tc.logger.WithError(err).WithField("chat_id", chatID).Debug("Auto-stop emission failed")
		}
	})
}

func (tc *TypingCoordinator) cancelAutoStop(chatID string) {
	tc.mu.Lock()
	if timer, ok := tc.autoStop[chatID]; ok {
		timer.Stop()
		delete(tc.autoStop, chatID)
	}
	tc.mu.Unlock()
}

func (tc *TypingCoordinator) emit(ctx context.Context, chatID string, isTyping bool) error {
	doc := gateway.Doc{
		"chat_id":   chatID,
		"user_id":   tc.selfID,
		"username":  tc.username,
		"is_typing": isTyping,
	}
	err := tc.transport.Publish(ctx, realtime.TypingTopic(chatID), realtime.EventUpdated, doc)
	if err != nil {
		tc.logger.WithError(err).WithField("chat_id", chatID).Debug("Typing emission failed")
		return err
	}
	metrics.IncrementCounter("typing_emissions_total", map[string]string{"typing": boolLabel(isTyping)}, "Outbound typing signals")
	return nil
}

// HandleRemote folds an inbound typing signal into the observable set. A new
// signal from the same user replaces, never appends to, the old one. Our own
// echoes are ignored.
func (tc *TypingCoordinator) HandleRemote(evt realtime.Event) {
	userID := evt.Doc.String("user_id")
	chatID := evt.Doc.String("chat_id")
	if userID == "" || chatID == "" || userID == tc.selfID {
		return
	}

	isTyping, _ := evt.Doc["is_typing"].(bool)

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !isTyping {
		if byUser, ok := tc.inbound[chatID]; ok {
			delete(byUser, userID)
			if len(byUser) == 0 {
				delete(tc.inbound, chatID)
			}
		}
		return
	}

	byUser, ok := tc.inbound[chatID]
	if !ok {
		byUser = make(map[string]models.TypingSignal)
		tc.inbound[chatID] = byUser
	}
	byUser[userID] = models.TypingSignal{
		ChatID:    chatID,
		UserID:    userID,
		Username:  evt.Doc.String("username"),
		IsTyping:  true,
		UpdatedAt: time.Now(),
	}
}

// ActiveTypists returns the users currently typing in a chat, freshest first
// not guaranteed; order is unspecified.
func (tc *TypingCoordinator) ActiveTypists(chatID string) []models.TypingSignal {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	byUser, ok := tc.inbound[chatID]
	if !ok {
		return nil
	}
	now := time.Now()
	out := make([]models.TypingSignal, 0, len(byUser))
	for _, sig := range byUser {
		if !sig.Expired(now, tc.config.TTL) {
			out = append(out, sig)
		}
	}
	return out
}

// sweep removes signals past the staleness window even if no explicit stop
// ever arrived, so a sender dying mid-type cannot leave a stuck indicator.
func (tc *TypingCoordinator) sweep() {
	now := time.Now()
	removed := 0

	tc.mu.Lock()
	for chatID, byUser := range tc.inbound {
		for userID, sig := range byUser {
			if sig.Expired(now, tc.config.TTL) {
				delete(byUser, userID)
				removed++
			}
		}
		if len(byUser) == 0 {
			delete(tc.inbound, chatID)
		}
	}
	tc.mu.Unlock()

	if removed > 0 {
		metrics.IncrementCounter("typing_sweep_expired_total", nil, "Typing signals expired by the sweep")
		tc.logger.WithField("expired", removed).Debug("Swept stale typing signals")
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
