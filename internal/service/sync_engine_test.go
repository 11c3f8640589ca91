package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/kvstore"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/network"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/queue"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu        sync.Mutex
	completed []int
	failed    []int
}

func (n *recordingNotifier) SyncCompleted(succeeded int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, succeeded)
}

func (n *recordingNotifier) SyncFailed(failed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, failed)
}

type syncFixture struct {
	queue    *queue.Store
	remote   *gateway.Memory
	engine   *SyncEngine
	notifier *recordingNotifier
	ownerID  string
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	kv, err := kvstore.New(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	q := queue.New(kv, logger)
	remote := gateway.NewMemory()

	ownerID, err := remote.Append(context.Background(), "profiles", gateway.Doc{
		"auth_user_id": "auth-1",
		"username":     "ada",
		"phone":        "+2348012345678",
	})
	require.NoError(t, err)

	monitor := network.NewMonitor(logger)
	publisher := NewStatusPublisher(q, monitor, logger)
	notifier := &recordingNotifier{}
	engine := NewSyncEngine(q, remote, publisher, notifier, "auth-1", logger)

	return &syncFixture{
		queue:    q,
		remote:   remote,
		engine:   engine,
		notifier: notifier,
		ownerID:  ownerID,
	}
}

func TestSyncAllDrainsMessages(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	_, err := f.queue.EnqueueMessage(ctx, "chat-1", "hello", "u1")
	require.NoError(t, err)
	_, err = f.queue.EnqueueMessage(ctx, "chat-1", "world", "u1")
	require.NoError(t, err)

	require.NoError(t, f.engine.SyncAll(ctx))

	assert.Equal(t, 2, f.remote.Count("chats/chat-1/messages"))

	// Confirmed records keep their terminal status readable until the next
	// pass collects them.
	msgs, err := f.queue.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, models.QueueStatusSent, m.Status)
	}

	require.NoError(t, f.engine.SyncAll(ctx))
	msgs, err = f.queue.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.Equal(t, []int{2}, f.notifier.completed)
	assert.Empty(t, f.notifier.failed)
}

func TestSyncAllMessageCarriesClientID(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	rec, err := f.queue.EnqueueMessage(ctx, "chat-1", "hello", "u1")
	require.NoError(t, err)
	require.NoError(t, f.engine.SyncAll(ctx))

	docs, err := f.remote.Query(ctx, "chats/chat-1/messages")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, rec.ID, docs[0].String("client_id"))
	assert.Equal(t, "u1", docs[0].String("sender_id"))
}

func TestSyncAllLinksContactsToKnownUsers(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	known, err := f.remote.Append(ctx, "profiles", gateway.Doc{
		"auth_user_id": "auth-2",
		"username":     "obi",
		"phone":        "+2347011111111",
	})
	require.NoError(t, err)

	linked, err := f.queue.EnqueueContact(ctx, f.ownerID, "Obi", "K", "+2347011111111")
	require.NoError(t, err)
	unlinked, err := f.queue.EnqueueContact(ctx, f.ownerID, "No", "Body", "+2349099999999")
	require.NoError(t, err)

	require.NoError(t, f.engine.SyncAll(ctx))

	doc, err := f.remote.Get(ctx, "profiles/"+f.ownerID+"/contacts/"+linked.ID)
	require.NoError(t, err)
	assert.Equal(t, true, doc["is_quicktalk_user"])
	assert.Equal(t, known, doc.String("linked_user_id"))

	doc, err = f.remote.Get(ctx, "profiles/"+f.ownerID+"/contacts/"+unlinked.ID)
	require.NoError(t, err)
	assert.Equal(t, false, doc["is_quicktalk_user"])
}

func TestSyncAllPatchesContactUpdates(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	contactPath := "profiles/" + f.ownerID + "/contacts/contact-1"
	require.NoError(t, f.remote.Upsert(ctx, contactPath, gateway.Doc{
		"first_name": "Ada",
		"phone":      "+2348012345678",
	}, false))

	_, err := f.queue.EnqueueContactUpdate(ctx, f.ownerID, "contact-1", map[string]interface{}{
		"first_name": "Adaeze",
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.SyncAll(ctx))

	doc, err := f.remote.Get(ctx, contactPath)
	require.NoError(t, err)
	assert.Equal(t, "Adaeze", doc.String("first_name"))
	// Fields outside the patch stay untouched.
	assert.Equal(t, "+2348012345678", doc.String("phone"))
}

func TestSyncAllIdentityFailureAbortsWithoutMutation(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	rec, err := f.queue.EnqueueMessage(ctx, "chat-1", "hello", "u1")
	require.NoError(t, err)

	f.remote.FailQuery = fmt.Errorf("remote unreachable")
	err = f.engine.SyncAll(ctx)
	require.Error(t, err)

	// The record is untouched: still pending, no failure recorded.
	msgs, err := f.queue.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.ID, msgs[0].ID)
	assert.Equal(t, models.QueueStatusPending, msgs[0].Status)
	assert.Zero(t, msgs[0].RetryCount)
	assert.Empty(t, f.notifier.failed)
}

func TestSyncAllRemoteFailureMarksRecordFailed(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	rec, err := f.queue.EnqueueMessage(ctx, "chat-1", "hello", "u1")
	require.NoError(t, err)

	f.remote.FailAppend = fmt.Errorf("write rejected")
	require.NoError(t, f.engine.SyncAll(ctx))

	msgs, err := f.queue.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.ID, msgs[0].ID)
	assert.Equal(t, models.QueueStatusFailed, msgs[0].Status)
	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Contains(t, msgs[0].LastError, "write rejected")
	assert.Equal(t, []int{1}, f.notifier.failed)

	// The failed record is retried on the next pass once the remote recovers.
	f.remote.FailAppend = nil
	require.NoError(t, f.engine.SyncAll(ctx))

	msgs, err = f.queue.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.QueueStatusSent, msgs[0].Status)
	assert.Equal(t, 1, f.remote.Count("chats/chat-1/messages"))
}

func TestSyncAllOneFailureDoesNotStopOthers(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	_, err := f.queue.EnqueueMessage(ctx, "chat-1", "will fail", "u1")
	require.NoError(t, err)
	contact, err := f.queue.EnqueueContact(ctx, f.ownerID, "Ada", "O", "+2348012345678")
	require.NoError(t, err)

	f.remote.FailAppend = fmt.Errorf("messages down")
	require.NoError(t, f.engine.SyncAll(ctx))

	// Contact synced even though every message failed.
	_, err = f.remote.Get(ctx, "profiles/"+f.ownerID+"/contacts/"+contact.ID)
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, f.notifier.failed)
}

func TestSyncAllEmptyQueueSendsNoNotifications(t *testing.T) {
	f := newSyncFixture(t)

	require.NoError(t, f.engine.SyncAll(context.Background()))

	assert.Empty(t, f.notifier.completed)
	assert.Empty(t, f.notifier.failed)
}

func TestSyncAllConcurrentCallsCollapse(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.queue.EnqueueMessage(ctx, "chat-1", fmt.Sprintf("msg %d", i), "u1")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.engine.SyncAll(ctx)
		}()
	}
	wg.Wait()

	// Run one final pass to catch anything skipped by the in-flight guard.
	require.NoError(t, f.engine.SyncAll(ctx))

	// Every message synced exactly once despite the concurrent kicks.
	assert.Equal(t, 5, f.remote.Count("chats/chat-1/messages"))
}
