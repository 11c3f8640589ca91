package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/errors"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SyncEngine drains the durable queue against the remote store. Failed
// records get no backoff schedule of their own: they simply become eligible
// again on the next pass, which an online edge, a scheduler tick, or an
// explicit SyncNow triggers.
type SyncEngine struct {
	queue     *queue.Store
	remote    gateway.RemoteStore
	publisher *StatusPublisher
	notifier  Notifier
	logger    *errors.Logger

	authUserID string

	inFlight atomic.Bool
}

// NewSyncEngine creates a sync engine for the given authenticated user.
func NewSyncEngine(q *queue.Store, remote gateway.RemoteStore, publisher *StatusPublisher, notifier Notifier, authUserID string, logger *logrus.Logger) *SyncEngine {
	return &SyncEngine{
		queue:      q,
		remote:     remote,
		publisher:  publisher,
		notifier:   notifier,
		logger:     errors.WrapLogger(logger),
		authUserID: authUserID,
	}
}

type passResult struct {
	attempted int
	succeeded int
	failed    int
}

func (r *passResult) add(other passResult) {
	r.attempted += other.attempted
	r.succeeded += other.succeeded
	r.failed += other.failed
}

// SyncAll runs one complete drain attempt. It is idempotent and re-entrant
// safe: a call arriving while a pass is running is a no-op, not queued.
func (e *SyncEngine) SyncAll(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("Sync pass already in flight, skipping")
		return nil
	}
	defer e.inFlight.Store(false)

	ctx, span := tracing.StartSpan(ctx, "sync.all")
	defer span.End()
	start := time.Now()

	owner, err := e.resolveOwner(ctx)
	if err != nil {
		// Identity failures abort the whole pass with no record mutation.
		tracing.RecordError(ctx, err)
		e.logger.LogRetryableError(err, "Sync pass aborted, owner profile unresolved")
		return err
	}
	tracing.AddSpanAttributes(ctx, attribute.String("owner_id", owner.ID))

	// Collect records the previous pass confirmed, then make failed ones
	// eligible again. A record keeps its terminal status readable until the
	// next pass collects it.
	var total passResult
	for _, kind := range models.QueueKinds {
		if _, err := e.queue.RemoveSucceeded(ctx, kind); err != nil {
			e.logger.LogError(err, "Failed to remove succeeded records", logrus.Fields{"kind": kind})
		}
		if _, err := e.queue.RequeueFailed(ctx, kind); err != nil {
			e.logger.LogError(err, "Failed to requeue failed records", logrus.Fields{"kind": kind})
		}
	}

	result, err := e.syncMessages(ctx)
	if err != nil {
		return e.finishPass(ctx, total, err)
	}
	total.add(result)

	result, err = e.syncContacts(ctx, owner)
	if err != nil {
		return e.finishPass(ctx, total, err)
	}
	total.add(result)

	result, err = e.syncContactUpdates(ctx, owner)
	if err != nil {
		return e.finishPass(ctx, total, err)
	}
	total.add(result)

	metrics.RecordTimer("sync_pass", time.Since(start), nil, "Duration of one full sync pass")
	metrics.IncrementCounter("sync_passes_total", nil, "Completed sync passes")

	e.publisher.Recompute(ctx, true)

	if total.attempted > 0 {
		if total.failed > 0 {
			e.notifier.SyncFailed(total.failed)
		} else if total.succeeded > 0 {
			e.notifier.SyncCompleted(total.succeeded)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"attempted": total.attempted,
		"succeeded": total.succeeded,
		"failed":    total.failed,
	}).Info("Sync pass finished")

	span.SetAttributes(
		attribute.Int("attempted", total.attempted),
		attribute.Int("succeeded", total.succeeded),
		attribute.Int("failed", total.failed),
	)
	return nil
}

// IsSyncing reports whether a pass is currently in flight.
func (e *SyncEngine) IsSyncing() bool {
	return e.inFlight.Load()
}

// finishPass handles a local-storage failure mid-pass. Remote failures never
// take this path; they are folded into per-record status instead.
func (e *SyncEngine) finishPass(ctx context.Context, total passResult, err error) error {
	tracing.RecordError(ctx, err)
	e.publisher.Recompute(ctx, false)
	if total.failed > 0 || total.attempted > 0 {
		e.notifier.SyncFailed(total.failed)
	}
	return err
}

// resolveOwner loads the profile for the authenticated user. All three queue
// kinds need it, so an unresolved identity is a transient whole-pass failure.
func (e *SyncEngine) resolveOwner(ctx context.Context) (*models.Profile, error) {
	docs, err := e.remote.Query(ctx, "profiles", gateway.Eq("auth_user_id", e.authUserID))
	if err != nil {
		return nil, errors.NewIdentityError(err)
	}
	if len(docs) == 0 {
		return nil, errors.NewIdentityError(gateway.ErrNotFound)
	}
	doc := docs[0]
	return &models.Profile{
		ID:         doc.String("id"),
		AuthUserID: doc.String("auth_user_id"),
		Username:   doc.String("username"),
		Phone:      doc.String("phone"),
	}, nil
}

func (e *SyncEngine) syncMessages(ctx context.Context) (passResult, error) {
	var result passResult

	records, err := e.queue.ListMessages(ctx)
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		if rec.Status != models.QueueStatusPending {
			continue
		}
		result.attempted++

		doc := gateway.Doc{
			"client_id":    rec.ID,
			"chat_id":      rec.ChatID,
			"content":      rec.Content,
			"sender_id":    rec.SenderID,
			"read_by":      []string{},
			"delivered_to": []string{},
		}
		_, err := e.remote.Append(ctx, "chats/"+rec.ChatID+"/messages", doc)
		if err != nil {
			result.failed++
			if uerr := e.queue.UpdateMessageStatus(ctx, rec.ID, models.QueueStatusFailed, err.Error()); uerr != nil {
				e.logger.LogError(uerr, "Failed to mark message failed", logrus.Fields{"id": rec.ID})
			}
			e.logger.LogRetryableError(err, "Message sync failed", logrus.Fields{"id": rec.ID, "chat_id": rec.ChatID})
			continue
		}

		result.succeeded++
		if uerr := e.queue.UpdateMessageStatus(ctx, rec.ID, models.QueueStatusSent, ""); uerr != nil {
			e.logger.LogError(uerr, "Failed to mark message sent", logrus.Fields{"id": rec.ID})
		}
	}
	return result, nil
}

func (e *SyncEngine) syncContacts(ctx context.Context, owner *models.Profile) (passResult, error) {
	var result passResult

	records, err := e.queue.ListContacts(ctx)
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		if rec.Status != models.QueueStatusPending {
			continue
		}
		result.attempted++

		doc := gateway.Doc{
			"first_name":        rec.FirstName,
			"last_name":         rec.LastName,
			"phone":             rec.Phone,
			"is_quicktalk_user": false,
		}

		// Resolve whether the phone belongs to a known QuickTalk user.
		matches, err := e.remote.Query(ctx, "profiles", gateway.Eq("phone", rec.Phone))
		if err == nil && len(matches) > 0 {
			doc["is_quicktalk_user"] = true
			doc["linked_user_id"] = matches[0].String("id")
		} else if err != nil {
			e.logger.LogWarn(err, "Phone lookup failed, saving contact unlinked", logrus.Fields{"id": rec.ID})
		}

		path := "profiles/" + owner.ID + "/contacts/" + rec.ID
		if err := e.remote.Upsert(ctx, path, doc, true); err != nil {
			result.failed++
			if uerr := e.queue.UpdateContactStatus(ctx, rec.ID, models.QueueStatusFailed, err.Error()); uerr != nil {
				e.logger.LogError(uerr, "Failed to mark contact failed", logrus.Fields{"id": rec.ID})
			}
			e.logger.LogRetryableError(err, "Contact sync failed", logrus.Fields{"id": rec.ID})
			continue
		}

		result.succeeded++
		if uerr := e.queue.UpdateContactStatus(ctx, rec.ID, models.QueueStatusSaved, ""); uerr != nil {
			e.logger.LogError(uerr, "Failed to mark contact saved", logrus.Fields{"id": rec.ID})
		}
	}
	return result, nil
}

func (e *SyncEngine) syncContactUpdates(ctx context.Context, owner *models.Profile) (passResult, error) {
	var result passResult

	records, err := e.queue.ListContactUpdates(ctx)
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		if rec.Status != models.QueueStatusPending {
			continue
		}
		result.attempted++

		// Partial patch: fields absent from the payload stay untouched.
		partial := gateway.Doc{}
		for k, v := range rec.Updates {
			partial[k] = v
		}

		path := "profiles/" + owner.ID + "/contacts/" + rec.ContactID
		if err := e.remote.Patch(ctx, path, partial); err != nil {
			result.failed++
			if uerr := e.queue.UpdateContactUpdateStatus(ctx, rec.ID, models.QueueStatusFailed, err.Error()); uerr != nil {
				e.logger.LogError(uerr, "Failed to mark contact update failed", logrus.Fields{"id": rec.ID})
			}
			e.logger.LogRetryableError(err, "Contact update sync failed", logrus.Fields{"id": rec.ID})
			continue
		}

		result.succeeded++
		if uerr := e.queue.UpdateContactUpdateStatus(ctx, rec.ID, models.QueueStatusUpdated, ""); uerr != nil {
			e.logger.LogError(uerr, "Failed to mark contact update applied", logrus.Fields{"id": rec.ID})
		}
	}
	return result, nil
}
