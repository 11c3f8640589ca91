package service

import (
	"github.com/sirupsen/logrus"
)

// Notifier receives the fire-and-forget user-visible signals emitted at the
// end of a sync pass. One aggregated notification per pass, never one per
// failed item.
type Notifier interface {
	SyncCompleted(succeeded int)
	SyncFailed(failed int)
}

// LogNotifier is the default Notifier: it writes the toast-equivalent to the
// structured log. The UI layer substitutes its own implementation.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SyncCompleted(succeeded int) {
	n.logger.WithField("succeeded", succeeded).Info("Sync completed")
}

func (n *LogNotifier) SyncFailed(failed int) {
	n.logger.WithField("failed", failed).Warn("Sync finished with failures")
}
