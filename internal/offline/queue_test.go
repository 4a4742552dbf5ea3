package offline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trattoria-be/internal/connectivity"
	"trattoria-be/internal/submission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	online atomic.Bool
	ch     chan connectivity.Event
}

func newFakeConn(online bool) *fakeConn {
	f := &fakeConn{ch: make(chan connectivity.Event, 8)}
	f.online.Store(online)
	return f
}

func (f *fakeConn) Online() bool                           { return f.online.Load() }
func (f *fakeConn) Subscribe() <-chan connectivity.Event   { return f.ch }
func (f *fakeConn) goOnline()                              { f.online.Store(true); f.ch <- connectivity.BecameOnline }

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered map[string]int
	failWith  error
	failLeft  int
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{delivered: map[string]int{}}
}

func (f *fakeDeliverer) deliver(localID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil && (f.failLeft > 0 || f.failLeft == -1) {
		if f.failLeft > 0 {
			f.failLeft--
		}
		return f.failWith
	}
	f.delivered[localID]++
	return nil
}

func (f *fakeDeliverer) DeliverSubmission(_ context.Context, localID string, _ []byte) error {
	return f.deliver(localID)
}

func (f *fakeDeliverer) DeliverStatusUpdate(_ context.Context, localID, _ string, _ []byte) error {
	return f.deliver(localID)
}

func (f *fakeDeliverer) count(localID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[localID]
}

func newTestQueue(t *testing.T, conn *fakeConn, d Deliverer, maxRetries int) (*Queue, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "queue.json"))
	q, err := NewQueue(store, d, conn, Options{
		MaxRetries:     maxRetries,
		FlushInterval:  time.Hour, // triggers driven manually in tests
		ItemDelay:      time.Millisecond,
		RequestTimeout: time.Second,
	})
	require.NoError(t, err)
	return q, store
}

func TestQueue_OfflineEnqueueThenOnlineFlush(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	q, _ := newTestQueue(t, conn, d, 5)

	id1, err := q.EnqueueSubmission([]byte(`{"pizza":"salami"}`))
	require.NoError(t, err)
	id2, err := q.EnqueueStatusUpdate("ord-1", []byte(`{"status":"completed"}`))
	require.NoError(t, err)

	// Offline: nothing delivered, both pending, flush is a no-op.
	q.Flush(context.Background())
	assert.Len(t, q.Pending(), 2)
	assert.Equal(t, 0, d.count(id1))

	conn.online.Store(true)
	q.Flush(context.Background())

	// Exactly one delivery per entry, keyed by the stable localID.
	assert.Equal(t, 1, d.count(id1))
	assert.Equal(t, 1, d.count(id2))
	assert.Empty(t, q.Pending())
	assert.Empty(t, q.Failed())

	// Synced entries remain briefly visible for the UI.
	assert.Len(t, q.Recent(), 2)
}

func TestQueue_FIFOOrder(t *testing.T) {
	conn := newFakeConn(false)

	var mu sync.Mutex
	var order []string
	d := &orderedDeliverer{record: func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}}
	q, _ := newTestQueue(t, conn, d, 5)

	id1, _ := q.EnqueueSubmission([]byte(`1`))
	id2, _ := q.EnqueueSubmission([]byte(`2`))
	id3, _ := q.EnqueueStatusUpdate("o", []byte(`3`))

	conn.online.Store(true)
	q.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{id1, id2, id3}, order)
}

type orderedDeliverer struct{ record func(string) }

func (o *orderedDeliverer) DeliverSubmission(_ context.Context, id string, _ []byte) error {
	o.record(id)
	return nil
}

func (o *orderedDeliverer) DeliverStatusUpdate(_ context.Context, id, _ string, _ []byte) error {
	o.record(id)
	return nil
}

func TestQueue_RetryCeiling(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	d.failWith = &submission.Error{Kind: submission.KindRejected, Status: 422, Err: errors.New("bad payload")}
	d.failLeft = -1 // always fail
	q, _ := newTestQueue(t, conn, d, 3)

	id, err := q.EnqueueSubmission([]byte(`{}`))
	require.NoError(t, err)
	conn.online.Store(true)

	// Each flush consumes exactly one retry attempt.
	for i := 0; i < 3; i++ {
		q.Flush(context.Background())
	}

	failed := q.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].LocalID)
	assert.Equal(t, 3, failed[0].RetryCount)
	assert.Contains(t, failed[0].LastError, "bad payload")

	// Failed entries are excluded from subsequent automatic flushes.
	d.mu.Lock()
	d.failWith = nil
	d.mu.Unlock()
	q.Flush(context.Background())
	assert.Equal(t, 0, d.count(id))

	// Until the operator retries them.
	require.NoError(t, q.RetryFailed(context.Background()))
	waitFor(t, func() bool { return d.count(id) == 1 })
	assert.Empty(t, q.Failed())
}

func TestQueue_RetryFailedOutlivesCallerContext(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	d.failWith = &submission.Error{Kind: submission.KindRejected, Status: 422, Err: errors.New("bad payload")}
	d.failLeft = -1
	q, _ := newTestQueue(t, conn, d, 1)

	id, err := q.EnqueueSubmission([]byte(`{}`))
	require.NoError(t, err)
	conn.online.Store(true)
	q.Flush(context.Background())
	require.Len(t, q.Failed(), 1)

	d.mu.Lock()
	d.failWith = nil
	d.mu.Unlock()

	// The operator's request context is gone by the time the kicked flush
	// runs; delivery must happen promptly anyway, not wait for the timer.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.RetryFailed(ctx))

	waitFor(t, func() bool { return d.count(id) == 1 })
	assert.Empty(t, q.Failed())
}

func TestQueue_OfflineFailureDoesNotConsumeRetryBudget(t *testing.T) {
	conn := newFakeConn(true)
	d := newFakeDeliverer()
	d.failWith = &submission.Error{Kind: submission.KindOffline, Err: errors.New("connection refused")}
	d.failLeft = -1
	q, _ := newTestQueue(t, conn, d, 3)

	_, err := q.EnqueueSubmission([]byte(`{}`))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		q.Flush(context.Background())
	}

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].RetryCount)
	assert.Empty(t, q.Failed())
}

func TestQueue_TransientFailureRetriesNextFlush(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	d.failWith = &submission.Error{Kind: submission.KindTransient, Status: 503, Err: errors.New("overloaded")}
	d.failLeft = 1
	q, _ := newTestQueue(t, conn, d, 5)

	id, err := q.EnqueueSubmission([]byte(`{}`))
	require.NoError(t, err)
	conn.online.Store(true)

	q.Flush(context.Background())
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	q.Flush(context.Background())
	assert.Equal(t, 1, d.count(id))
	assert.Empty(t, q.Pending())
}

func TestQueue_PersistsAcrossRestart(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	store := NewStore(filepath.Join(t.TempDir(), "queue.json"))

	q1, err := NewQueue(store, d, conn, Options{MaxRetries: 3})
	require.NoError(t, err)
	id, err := q1.EnqueueSubmission([]byte(`{"x":1}`))
	require.NoError(t, err)

	// New process, same state file.
	q2, err := NewQueue(store, d, conn, Options{MaxRetries: 3})
	require.NoError(t, err)
	pending := q2.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].LocalID)
}

func TestQueue_SyncingEntriesReloadAsPending(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, store.Save([]*Entry{
		{LocalID: "stuck", Type: TypeSubmission, State: StateSyncing, CreatedAt: time.Now()},
	}))

	q, err := NewQueue(store, newFakeDeliverer(), newFakeConn(false), Options{})
	require.NoError(t, err)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, StatePending, pending[0].State)
}

func TestQueue_ConcurrentFlushesDoNotDuplicate(t *testing.T) {
	conn := newFakeConn(true)
	d := newFakeDeliverer()
	q, _ := newTestQueue(t, conn, d, 5)

	ids := make([]string, 5)
	for i := range ids {
		id, err := q.EnqueueSubmission([]byte(`{}`))
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Flush(context.Background())
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return len(q.Pending()) == 0 })

	for _, id := range ids {
		assert.Equal(t, 1, d.count(id), "entry %s delivered more than once", id)
	}
}

func TestQueue_RunFlushesOnBecameOnline(t *testing.T) {
	conn := newFakeConn(false)
	d := newFakeDeliverer()
	q, _ := newTestQueue(t, conn, d, 5)

	id, err := q.EnqueueSubmission([]byte(`{}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	conn.goOnline()
	waitFor(t, func() bool { return d.count(id) == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
