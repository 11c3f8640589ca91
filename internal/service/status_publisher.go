package service

import (
	"context"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/network"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"

	"github.com/sirupsen/logrus"
)

// StatusPublisher aggregates queue depth and connectivity into one observable
// SyncStatus. It is pure derivation: recomputed after every queue mutation
// and every connectivity edge, then pushed to all listeners.
type StatusPublisher struct {
	queue   *queue.Store
	monitor *network.Monitor
	logger  *logrus.Logger

	mu        sync.Mutex
	last      models.SyncStatus
	nextID    int
	listeners map[int]func(models.SyncStatus)
}

// NewStatusPublisher creates a publisher over the queue and network monitor.
func NewStatusPublisher(q *queue.Store, monitor *network.Monitor, logger *logrus.Logger) *StatusPublisher {
	return &StatusPublisher{
		queue:     q,
		monitor:   monitor,
		logger:    logger,
		listeners: make(map[int]func(models.SyncStatus)),
	}
}

// Current returns the last published status.
func (p *StatusPublisher) Current() models.SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Subscribe registers a listener and returns its removal function. Removal is
// O(1) and safe to call from inside the listener's own callback, because the
// publisher fires listeners from a snapshot.
func (p *StatusPublisher) Subscribe(fn func(models.SyncStatus)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Recompute re-derives the status and pushes it to every listener. markSynced
// stamps LastSyncAt, which only a completed sync pass should do.
func (p *StatusPublisher) Recompute(ctx context.Context, markSynced bool) models.SyncStatus {
	nm, nc, nu, err := p.queue.Counts(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Failed to count queued records")
	}

	p.mu.Lock()
	status := models.SyncStatus{
		LastSyncAt:      p.last.LastSyncAt,
		IsOnline:        p.monitor.IsOnline(),
		PendingMessages: nm,
		PendingContacts: nc,
		PendingUpdates:  nu,
	}
	if markSynced {
		status.LastSyncAt = time.Now().UTC()
	}
	p.last = status

	listeners := make([]func(models.SyncStatus), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	metrics.SetGauge("queue_pending_messages", float64(nm), nil, "Pending queued messages")
	metrics.SetGauge("queue_pending_contacts", float64(nc), nil, "Pending queued contacts")
	metrics.SetGauge("queue_pending_updates", float64(nu), nil, "Pending queued contact updates")

	for _, fn := range listeners {
		fn(status)
	}
	return status
}
