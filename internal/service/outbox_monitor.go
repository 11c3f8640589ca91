package service

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"

	"github.com/sirupsen/logrus"
)

// OutboxMonitor periodically checks for queued records that have sat
// unconfirmed past a threshold and surfaces them as a gauge plus a warning.
// It never mutates the queue.
type OutboxMonitor struct {
	queue     *queue.Store
	threshold time.Duration
	interval  time.Duration
	logger    *logrus.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutboxMonitor creates a monitor that flags records older than threshold,
// checking every interval.
func NewOutboxMonitor(q *queue.Store, threshold, interval time.Duration, logger *logrus.Logger) *OutboxMonitor {
	return &OutboxMonitor{
		queue:     q,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the check loop.
func (m *OutboxMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts the loop. Safe to call more than once.
func (m *OutboxMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *OutboxMonitor) check(ctx context.Context) {
	stale, err := m.queue.StaleCount(ctx, m.threshold)
	if err != nil {
		m.logger.WithError(err).Debug("Stale outbox check failed")
		return
	}
	metrics.SetGauge("queue_stale_records", float64(stale), nil, "Queued records unconfirmed past the staleness threshold")
	if stale > 0 {
		m.logger.WithFields(logrus.Fields{
			"stale":     stale,
			"threshold": m.threshold.String(),
		}).Warn("Queued records unconfirmed past threshold")
	}
}
