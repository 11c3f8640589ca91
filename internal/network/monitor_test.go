package network

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestMonitor() *Monitor {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewMonitor(logger)
}

func TestStartsOffline(t *testing.T) {
	m := newTestMonitor()
	assert.False(t, m.IsOnline())
}

func TestListenersFireOnEdgeOnly(t *testing.T) {
	m := newTestMonitor()

	var calls []bool
	m.OnChange(func(online bool) { calls = append(calls, online) })

	m.SetOnline(false) // no edge, still offline
	m.SetOnline(true)
	m.SetOnline(true) // repeated report, no edge
	m.SetOnline(false)

	assert.Equal(t, []bool{true, false}, calls)
	assert.False(t, m.IsOnline())
}

func TestRemovedListenerStopsFiring(t *testing.T) {
	m := newTestMonitor()

	calls := 0
	remove := m.OnChange(func(bool) { calls++ })

	m.SetOnline(true)
	remove()
	m.SetOnline(false)

	assert.Equal(t, 1, calls)
}

func TestListenerMayRemoveItselfWhileFiring(t *testing.T) {
	m := newTestMonitor()

	var remove func()
	calls := 0
	remove = m.OnChange(func(bool) {
		calls++
		remove()
	})

	m.SetOnline(true)
	m.SetOnline(false)

	assert.Equal(t, 1, calls)
}
