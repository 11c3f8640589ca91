// Package queue implements the durable offline queue: the single source of
// truth for what still needs to leave this device. Records are persisted per
// kind as one versioned JSON list in the local key-value store, and every
// write replaces that list atomically.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/errors"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/kvstore"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const encodingVersion = 1

const keyPrefix = "queue:"

type envelope struct {
	Version int             `json:"version"`
	Records json.RawMessage `json:"records"`
}

// Store is the durable queue over the local key-value store. All mutations
// are read-modify-write of a single record by id under the store mutex, so a
// concurrent enqueue can never be clobbered by a sync pass writing back a
// stale snapshot.
type Store struct {
	kv     kvstore.Store
	logger *logrus.Logger

	mu       sync.Mutex
	lastIDMs int64
}

// New creates a queue store over the given key-value store.
func New(kv kvstore.Store, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// NewID returns a client-unique record id: a monotonic millisecond timestamp
// plus a random suffix. Rapid calls in the same millisecond still produce
// distinct, ordered ids.
func (s *Store) NewID() string {
	s.mu.Lock()
	ms := time.Now().UnixMilli()
	if ms <= s.lastIDMs {
		ms = s.lastIDMs + 1
	}
	s.lastIDMs = ms
	s.mu.Unlock()

	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%013d-%s", ms, suffix)
}

func kindKey(kind models.QueueKind) string {
	return keyPrefix + string(kind)
}

func loadList[T any](ctx context.Context, s *Store, kind models.QueueKind) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, kindKey(kind))
	if err != nil {
		return nil, errors.NewStoreError("load queue "+string(kind), err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreEncoding, "corrupt queue envelope").
			WithContext("kind", string(kind))
	}
	if env.Version != encodingVersion {
		return nil, errors.New(errors.ErrCodeStoreEncoding, "unsupported queue encoding version").
			WithContext("kind", string(kind)).
			WithContext("version", env.Version)
	}

	var records []T
	if err := json.Unmarshal(env.Records, &records); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreEncoding, "corrupt queue records").
			WithContext("kind", string(kind))
	}
	return records, nil
}

func saveList[T any](ctx context.Context, s *Store, kind models.QueueKind, records []T) error {
	if records == nil {
		records = []T{}
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreEncoding, "failed to encode queue records").
			WithContext("kind", string(kind))
	}
	env := envelope{Version: encodingVersion, Records: encoded}
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreEncoding, "failed to encode queue envelope").
			WithContext("kind", string(kind))
	}
	if err := s.kv.Set(ctx, kindKey(kind), string(payload)); err != nil {
		return errors.NewStoreError("save queue "+string(kind), err)
	}
	return nil
}

// EnqueueMessage appends a message record in pending state and returns it.
func (s *Store) EnqueueMessage(ctx context.Context, chatID, content, senderID string) (models.QueuedMessage, error) {
	rec := models.QueuedMessage{
		ID:        s.NewID(),
		ChatID:    chatID,
		Content:   content,
		SenderID:  senderID,
		CreatedAt: time.Now().UTC(),
		Status:    models.QueueStatusPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedMessage](ctx, s, models.QueueKindMessage)
	if err != nil {
		return models.QueuedMessage{}, err
	}
	records = append(records, rec)
	if err := saveList(ctx, s, models.QueueKindMessage, records); err != nil {
		return models.QueuedMessage{}, err
	}
	return rec, nil
}

// EnqueueContact appends a contact record in pending state and returns it.
func (s *Store) EnqueueContact(ctx context.Context, ownerID, firstName, lastName, phone string) (models.QueuedContact, error) {
	rec := models.QueuedContact{
		ID:        s.NewID(),
		OwnerID:   ownerID,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
		Status:    models.QueueStatusPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedContact](ctx, s, models.QueueKindContact)
	if err != nil {
		return models.QueuedContact{}, err
	}
	records = append(records, rec)
	if err := saveList(ctx, s, models.QueueKindContact, records); err != nil {
		return models.QueuedContact{}, err
	}
	return rec, nil
}

// EnqueueContactUpdate appends a partial contact patch in pending state.
func (s *Store) EnqueueContactUpdate(ctx context.Context, ownerID, contactID string, updates map[string]interface{}) (models.QueuedContactUpdate, error) {
	rec := models.QueuedContactUpdate{
		ID:        s.NewID(),
		OwnerID:   ownerID,
		ContactID: contactID,
		Updates:   updates,
		CreatedAt: time.Now().UTC(),
		Status:    models.QueueStatusPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedContactUpdate](ctx, s, models.QueueKindContactUpdate)
	if err != nil {
		return models.QueuedContactUpdate{}, err
	}
	records = append(records, rec)
	if err := saveList(ctx, s, models.QueueKindContactUpdate, records); err != nil {
		return models.QueuedContactUpdate{}, err
	}
	return rec, nil
}

// ListMessages returns all queued messages in insertion order.
func (s *Store) ListMessages(ctx context.Context) ([]models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.QueuedMessage](ctx, s, models.QueueKindMessage)
}

// ListContacts returns all queued contacts in insertion order.
func (s *Store) ListContacts(ctx context.Context) ([]models.QueuedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.QueuedContact](ctx, s, models.QueueKindContact)
}

// ListContactUpdates returns all queued contact updates in insertion order.
func (s *Store) ListContactUpdates(ctx context.Context) ([]models.QueuedContactUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.QueuedContactUpdate](ctx, s, models.QueueKindContactUpdate)
}

// UpdateMessageStatus moves one message record through the queue state
// machine. Moving to failed increments the retry counter and records the
// cause; the record itself is never deleted here.
func (s *Store) UpdateMessageStatus(ctx context.Context, id string, to models.QueueStatus, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedMessage](ctx, s, models.QueueKindMessage)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		next, err := models.TransitionQueue(models.QueueKindMessage, records[i].Status, to)
		if err != nil {
			return err
		}
		records[i].Status = next
		if to == models.QueueStatusFailed {
			records[i].RetryCount++
			records[i].LastError = cause
		} else {
			records[i].LastError = ""
		}
		return saveList(ctx, s, models.QueueKindMessage, records)
	}
	return errors.New(errors.ErrCodeNotFound, "queued message not found").WithContext("id", id)
}

// UpdateContactStatus moves one contact record through the queue state machine.
func (s *Store) UpdateContactStatus(ctx context.Context, id string, to models.QueueStatus, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedContact](ctx, s, models.QueueKindContact)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		next, err := models.TransitionQueue(models.QueueKindContact, records[i].Status, to)
		if err != nil {
			return err
		}
		records[i].Status = next
		if to == models.QueueStatusFailed {
			records[i].RetryCount++
			records[i].LastError = cause
		} else {
			records[i].LastError = ""
		}
		return saveList(ctx, s, models.QueueKindContact, records)
	}
	return errors.New(errors.ErrCodeNotFound, "queued contact not found").WithContext("id", id)
}

// UpdateContactUpdateStatus moves one contact-update record through the queue
// state machine.
func (s *Store) UpdateContactUpdateStatus(ctx context.Context, id string, to models.QueueStatus, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[models.QueuedContactUpdate](ctx, s, models.QueueKindContactUpdate)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		next, err := models.TransitionQueue(models.QueueKindContactUpdate, records[i].Status, to)
		if err != nil {
			return err
		}
		records[i].Status = next
		if to == models.QueueStatusFailed {
			records[i].RetryCount++
			records[i].LastError = cause
		} else {
			records[i].LastError = ""
		}
		return saveList(ctx, s, models.QueueKindContactUpdate, records)
	}
	return errors.New(errors.ErrCodeNotFound, "queued contact update not found").WithContext("id", id)
}

// RequeueFailed flips failed records of a kind back to pending so the next
// sync pass retries them. Returns how many became eligible.
func (s *Store) RequeueFailed(ctx context.Context, kind models.QueueKind) (int, error) {
	switch kind {
	case models.QueueKindMessage:
		return mutateAll(ctx, s, kind, func(r *models.QueuedMessage) bool {
			if r.Status != models.QueueStatusFailed {
				return false
			}
			r.Status = models.QueueStatusPending
			return true
		})
	case models.QueueKindContact:
		return mutateAll(ctx, s, kind, func(r *models.QueuedContact) bool {
			if r.Status != models.QueueStatusFailed {
				return false
			}
			r.Status = models.QueueStatusPending
			return true
		})
	case models.QueueKindContactUpdate:
		return mutateAll(ctx, s, kind, func(r *models.QueuedContactUpdate) bool {
			if r.Status != models.QueueStatusFailed {
				return false
			}
			r.Status = models.QueueStatusPending
			return true
		})
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown queue kind").WithContext("kind", string(kind))
}

// RemoveSucceeded drops records that reached their terminal success status.
// Returns how many were removed.
func (s *Store) RemoveSucceeded(ctx context.Context, kind models.QueueKind) (int, error) {
	switch kind {
	case models.QueueKindMessage:
		return filterOut[models.QueuedMessage](ctx, s, kind, func(r models.QueuedMessage) bool {
			return r.Status.IsTerminalSuccess()
		})
	case models.QueueKindContact:
		return filterOut[models.QueuedContact](ctx, s, kind, func(r models.QueuedContact) bool {
			return r.Status.IsTerminalSuccess()
		})
	case models.QueueKindContactUpdate:
		return filterOut[models.QueuedContactUpdate](ctx, s, kind, func(r models.QueuedContactUpdate) bool {
			return r.Status.IsTerminalSuccess()
		})
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown queue kind").WithContext("kind", string(kind))
}

// ClearFailed drops failed records of a kind. This is the only way a failed
// record ever leaves the queue.
func (s *Store) ClearFailed(ctx context.Context, kind models.QueueKind) (int, error) {
	switch kind {
	case models.QueueKindMessage:
		return filterOut[models.QueuedMessage](ctx, s, kind, func(r models.QueuedMessage) bool {
			return r.Status == models.QueueStatusFailed
		})
	case models.QueueKindContact:
		return filterOut[models.QueuedContact](ctx, s, kind, func(r models.QueuedContact) bool {
			return r.Status == models.QueueStatusFailed
		})
	case models.QueueKindContactUpdate:
		return filterOut[models.QueuedContactUpdate](ctx, s, kind, func(r models.QueuedContactUpdate) bool {
			return r.Status == models.QueueStatusFailed
		})
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown queue kind").WithContext("kind", string(kind))
}

// Counts returns the number of pending records per kind, in the order
// messages, contacts, contact updates.
func (s *Store) Counts(ctx context.Context) (int, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := loadList[models.QueuedMessage](ctx, s, models.QueueKindMessage)
	if err != nil {
		return 0, 0, 0, err
	}
	contacts, err := loadList[models.QueuedContact](ctx, s, models.QueueKindContact)
	if err != nil {
		return 0, 0, 0, err
	}
	updates, err := loadList[models.QueuedContactUpdate](ctx, s, models.QueueKindContactUpdate)
	if err != nil {
		return 0, 0, 0, err
	}

	nm, nc, nu := 0, 0, 0
	for _, r := range msgs {
		if r.Status == models.QueueStatusPending {
			nm++
		}
	}
	for _, r := range contacts {
		if r.Status == models.QueueStatusPending {
			nc++
		}
	}
	for _, r := range updates {
		if r.Status == models.QueueStatusPending {
			nu++
		}
	}
	return nm, nc, nu, nil
}

// StaleCount counts unconfirmed records older than the threshold, across all
// kinds. Used by the outbox staleness monitor.
func (s *Store) StaleCount(ctx context.Context, threshold time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-threshold)
	count := 0

	msgs, err := loadList[models.QueuedMessage](ctx, s, models.QueueKindMessage)
	if err != nil {
		return 0, err
	}
	for _, r := range msgs {
		if !r.Status.IsTerminalSuccess() && r.CreatedAt.Before(cutoff) {
			count++
		}
	}
	contacts, err := loadList[models.QueuedContact](ctx, s, models.QueueKindContact)
	if err != nil {
		return 0, err
	}
	for _, r := range contacts {
		if !r.Status.IsTerminalSuccess() && r.CreatedAt.Before(cutoff) {
			count++
		}
	}
	updates, err := loadList[models.QueuedContactUpdate](ctx, s, models.QueueKindContactUpdate)
	if err != nil {
		return 0, err
	}
	for _, r := range updates {
		if !r.Status.IsTerminalSuccess() && r.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func filterOut[T any](ctx context.Context, s *Store, kind models.QueueKind, drop func(T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[T](ctx, s, kind)
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	removed := 0
	for _, r := range records {
		if drop(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := saveList(ctx, s, kind, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func mutateAll[T any](ctx context.Context, s *Store, kind models.QueueKind, mutate func(*T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[T](ctx, s, kind)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range records {
		if mutate(&records[i]) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := saveList(ctx, s, kind, records); err != nil {
		return 0, err
	}
	return changed, nil
}
