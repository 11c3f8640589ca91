package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler triggers periodic sync passes. The engine's own in-flight guard
// makes an overdue tick harmless.
type Scheduler struct {
	engine   *SyncEngine
	interval time.Duration
	logger   *logrus.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler firing at the given interval.
func NewScheduler(engine *SyncEngine, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.interval.String()).Info("Sync scheduler started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.engine.SyncAll(ctx); err != nil {
					s.logger.WithError(err).Debug("Scheduled sync pass failed")
				}
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Sync scheduler stopped")
}
