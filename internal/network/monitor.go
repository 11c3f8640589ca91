// Package network tracks device connectivity and fans out online/offline
// edges to interested components.
package network

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Monitor observes connectivity transitions. Connectivity itself is pushed in
// from outside (a prober, the transport, or the OS); the monitor's job is edge
// detection and listener fan-out.
type Monitor struct {
	logger *logrus.Logger

	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(online bool)
}

// NewMonitor creates a monitor that starts offline until told otherwise.
func NewMonitor(logger *logrus.Logger) *Monitor {
	return &Monitor{
		logger:    logger,
		listeners: make(map[int]func(bool)),
	}
}

// IsOnline returns the last known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the current connectivity. Listeners fire only on an
// actual edge, not on repeated reports of the same state.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.logger.WithField("online", online).Info("Connectivity changed")
	for _, fn := range listeners {
		fn(online)
	}
}

// OnChange registers a listener for connectivity edges and returns its
// removal function. Removal is O(1) and safe to call from inside the
// listener itself, since firing iterates a snapshot.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
