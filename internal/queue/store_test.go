package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/kvstore"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.New(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(kv, logger)
}

func TestNewIDUnique(t *testing.T) {
	q := newTestQueue(t)

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := q.NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		// Monotonic millisecond prefix keeps ids sortable.
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestEnqueueMessagePersists(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	rec, err := q.EnqueueMessage(ctx, "chat-1", "hello", "user-a")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.QueueStatusPending, rec.Status)

	msgs, err := q.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.ID, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestEnqueuePreservesInsertionOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.EnqueueMessage(ctx, "chat-1", "one", "u")
	require.NoError(t, err)
	second, err := q.EnqueueMessage(ctx, "chat-1", "two", "u")
	require.NoError(t, err)

	msgs, err := q.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
}

func TestUpdateMessageStatus(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	rec, err := q.EnqueueMessage(ctx, "chat-1", "hello", "u")
	require.NoError(t, err)

	require.NoError(t, q.UpdateMessageStatus(ctx, rec.ID, models.QueueStatusFailed, "remote down"))

	msgs, err := q.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.QueueStatusFailed, msgs[0].Status)
	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Equal(t, "remote down", msgs[0].LastError)

	// Failed records cannot jump straight to success.
	err = q.UpdateMessageStatus(ctx, rec.ID, models.QueueStatusSent, "")
	assert.Error(t, err)
}

func TestUpdateStatusUnknownID(t *testing.T) {
	q := newTestQueue(t)
	err := q.UpdateMessageStatus(context.Background(), "missing", models.QueueStatusSent, "")
	assert.Error(t, err)
}

func TestRequeueFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	a, err := q.EnqueueMessage(ctx, "c", "a", "u")
	require.NoError(t, err)
	_, err = q.EnqueueMessage(ctx, "c", "b", "u")
	require.NoError(t, err)

	require.NoError(t, q.UpdateMessageStatus(ctx, a.ID, models.QueueStatusFailed, "boom"))

	n, err := q.RequeueFailed(ctx, models.QueueKindMessage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := q.ListMessages(ctx)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Equal(t, models.QueueStatusPending, m.Status)
	}
	// Retry count survives the requeue.
	assert.Equal(t, 1, msgs[0].RetryCount)
}

func TestRemoveSucceededKeepsUnconfirmed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	sent, err := q.EnqueueMessage(ctx, "c", "sent", "u")
	require.NoError(t, err)
	pending, err := q.EnqueueMessage(ctx, "c", "pending", "u")
	require.NoError(t, err)
	failed, err := q.EnqueueMessage(ctx, "c", "failed", "u")
	require.NoError(t, err)

	require.NoError(t, q.UpdateMessageStatus(ctx, sent.ID, models.QueueStatusSent, ""))
	require.NoError(t, q.UpdateMessageStatus(ctx, failed.ID, models.QueueStatusFailed, "x"))

	n, err := q.RemoveSucceeded(ctx, models.QueueKindMessage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := q.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, pending.ID, msgs[0].ID)
	assert.Equal(t, failed.ID, msgs[1].ID)
}

func TestClearFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	keep, err := q.EnqueueContact(ctx, "owner", "Ada", "Obi", "+2348012345678")
	require.NoError(t, err)
	drop, err := q.EnqueueContact(ctx, "owner", "Bad", "One", "+2348012345679")
	require.NoError(t, err)

	require.NoError(t, q.UpdateContactStatus(ctx, drop.ID, models.QueueStatusFailed, "rejected"))

	n, err := q.ClearFailed(ctx, models.QueueKindContact)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	contacts, err := q.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, keep.ID, contacts[0].ID)
}

func TestCountsPendingOnly(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueMessage(ctx, "c", "m1", "u")
	require.NoError(t, err)
	sent, err := q.EnqueueMessage(ctx, "c", "m2", "u")
	require.NoError(t, err)
	require.NoError(t, q.UpdateMessageStatus(ctx, sent.ID, models.QueueStatusSent, ""))

	_, err = q.EnqueueContact(ctx, "o", "A", "B", "+2348012345678")
	require.NoError(t, err)
	_, err = q.EnqueueContactUpdate(ctx, "o", "contact-1", map[string]interface{}{"notes": "friend"})
	require.NoError(t, err)

	nm, nc, nu, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nm)
	assert.Equal(t, 1, nc)
	assert.Equal(t, 1, nu)
}

func TestStaleCount(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueMessage(ctx, "c", "fresh", "u")
	require.NoError(t, err)

	n, err := q.StaleCount(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = q.StaleCount(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	kv, err := kvstore.New(path)
	require.NoError(t, err)
	q := New(kv, logger)
	rec, err := q.EnqueueMessage(ctx, "chat-1", "survive me", "u")
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv2, err := kvstore.New(path)
	require.NoError(t, err)
	defer kv2.Close()
	q2 := New(kv2, logger)

	msgs, err := q2.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.ID, msgs[0].ID)
	assert.Equal(t, models.QueueStatusPending, msgs[0].Status)
}
