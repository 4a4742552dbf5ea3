package offline

import (
	"context"
	"sync"
	"time"

	"trattoria-be/internal/connectivity"
	"trattoria-be/internal/logger"
	"trattoria-be/internal/submission"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Deliverer is the transport the queue flushes through. Implemented by
// submission.Client.
type Deliverer interface {
	DeliverSubmission(ctx context.Context, localID string, payload []byte) error
	DeliverStatusUpdate(ctx context.Context, localID, orderID string, payload []byte) error
}

// Connectivity is the reachability signal the queue gates flushing on.
// Implemented by connectivity.Monitor.
type Connectivity interface {
	Online() bool
	Subscribe() <-chan connectivity.Event
}

type Options struct {
	MaxRetries     int
	FlushInterval  time.Duration
	ItemDelay      time.Duration
	RequestTimeout time.Duration

	// RecentTTL bounds how long synced entries stay visible for UI
	// feedback after delivery.
	RecentTTL time.Duration
}

// Queue is the durable at-least-once delivery queue for outgoing order
// submissions and status updates. Enqueue always succeeds locally; delivery
// failures surface only through Failed() and RetryFailed().
type Queue struct {
	store     *Store
	deliverer Deliverer
	conn      Connectivity
	opts      Options

	mu      sync.Mutex
	entries []*Entry

	flushMu  sync.Mutex
	flushing bool
	rerun    bool

	recent *expirable.LRU[string, *Entry]
	log    *zap.Logger
}

func NewQueue(store *Store, deliverer Deliverer, conn Connectivity, opts Options) (*Queue, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 3 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.RecentTTL <= 0 {
		opts.RecentTTL = 5 * time.Minute
	}

	entries, err := store.Load()
	if err != nil {
		return nil, err
	}

	// A crash mid-flush leaves entries in syncing; they were never
	// acknowledged, so they go back to pending. The stable LocalID keeps a
	// possibly-delivered duplicate harmless on the backend.
	for _, e := range entries {
		if e.State == StateSyncing {
			e.State = StatePending
		}
	}

	q := &Queue{
		store:     store,
		deliverer: deliverer,
		conn:      conn,
		opts:      opts,
		entries:   entries,
		recent:    expirable.NewLRU[string, *Entry](128, nil, opts.RecentTTL),
		log:       logger.L().Named("offline-queue"),
	}

	if len(entries) > 0 {
		if err := store.Save(entries); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// EnqueueSubmission durably queues a new order submission and returns its
// local idempotency identifier. It never waits on the network.
func (q *Queue) EnqueueSubmission(payload []byte) (string, error) {
	return q.enqueue(TypeSubmission, "", payload)
}

// EnqueueStatusUpdate durably queues a status change for an existing order.
func (q *Queue) EnqueueStatusUpdate(orderID string, payload []byte) (string, error) {
	return q.enqueue(TypeStatusUpdate, orderID, payload)
}

func (q *Queue) enqueue(typ EntryType, orderID string, payload []byte) (string, error) {
	e := &Entry{
		LocalID:   uuid.New().String(),
		Type:      typ,
		OrderID:   orderID,
		Payload:   payload,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	q.entries = append(q.entries, e)
	err := q.persistLocked()
	q.mu.Unlock()
	if err != nil {
		return "", err
	}

	q.log.Info("entry enqueued",
		zap.String("local_id", e.LocalID),
		zap.String("type", string(typ)),
	)

	if q.conn.Online() {
		go q.Flush(context.Background())
	}
	return e.LocalID, nil
}

// Flush delivers every pending entry in FIFO order. A flush requested while
// one is running is coalesced into a single follow-up pass, never run
// concurrently.
func (q *Queue) Flush(ctx context.Context) {
	q.flushMu.Lock()
	if q.flushing {
		q.rerun = true
		q.flushMu.Unlock()
		return
	}
	q.flushing = true
	q.flushMu.Unlock()

	for {
		q.flushOnce(ctx)

		q.flushMu.Lock()
		if q.rerun && ctx.Err() == nil {
			q.rerun = false
			q.flushMu.Unlock()
			continue
		}
		q.flushing = false
		q.flushMu.Unlock()
		return
	}
}

// flushOnce processes each currently pending entry exactly once, in FIFO
// order. Entries that fail transiently become eligible again on the next
// flush, not within this pass.
func (q *Queue) flushOnce(ctx context.Context) {
	if !q.conn.Online() {
		return
	}

	for _, e := range q.pendingBatch() {
		if ctx.Err() != nil || !q.conn.Online() {
			return
		}
		if q.stateOf(e) != StatePending {
			continue
		}

		q.setState(e, StateSyncing, "")

		dctx, cancel := context.WithTimeout(ctx, q.opts.RequestTimeout)
		err := q.deliver(dctx, e)
		cancel()

		if ctx.Err() != nil {
			// Shutdown mid-flight: the entry must come back as pending,
			// never stick in a half-synced state.
			q.setState(e, StatePending, "")
			return
		}

		if err == nil {
			q.markSynced(e)
		} else if !q.handleFailure(e, err) {
			return
		}

		if q.opts.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.opts.ItemDelay):
			}
		}
	}
}

func (q *Queue) deliver(ctx context.Context, e *Entry) error {
	switch e.Type {
	case TypeStatusUpdate:
		return q.deliverer.DeliverStatusUpdate(ctx, e.LocalID, e.OrderID, e.Payload)
	default:
		return q.deliverer.DeliverSubmission(ctx, e.LocalID, e.Payload)
	}
}

// handleFailure applies the retry budget rules. It returns false when the
// flush pass should stop (device went offline).
func (q *Queue) handleFailure(e *Entry, err error) bool {
	if submission.KindOf(err) == submission.KindOffline {
		// Expected while disconnected: no retry budget consumed, and no
		// point trying the rest of the queue.
		q.setState(e, StatePending, err.Error())
		q.log.Info("delivery deferred, device offline", zap.String("local_id", e.LocalID))
		return false
	}

	q.mu.Lock()
	e.RetryCount++
	e.LastError = err.Error()
	if e.RetryCount >= q.opts.MaxRetries {
		e.State = StateFailed
	} else {
		e.State = StatePending
	}
	state := e.State
	retries := e.RetryCount
	persistErr := q.persistLocked()
	q.mu.Unlock()

	if persistErr != nil {
		q.log.Error("persisting queue state", zap.Error(persistErr))
	}
	if state == StateFailed {
		q.log.Error("entry moved to failed",
			zap.String("local_id", e.LocalID),
			zap.Int("retries", retries),
			zap.Error(err),
		)
	} else {
		q.log.Warn("delivery failed, will retry",
			zap.String("local_id", e.LocalID),
			zap.Int("retries", retries),
			zap.Error(err),
		)
	}
	return true
}

func (q *Queue) markSynced(e *Entry) {
	q.mu.Lock()
	e.State = StateSynced
	e.LastError = ""
	for i, cur := range q.entries {
		if cur.LocalID == e.LocalID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	persistErr := q.persistLocked()
	q.mu.Unlock()

	q.recent.Add(e.LocalID, e)
	if persistErr != nil {
		q.log.Error("persisting queue state", zap.Error(persistErr))
	}
	q.log.Info("entry synced", zap.String("local_id", e.LocalID))
}

// pendingBatch snapshots the pending entries in FIFO order.
func (q *Queue) pendingBatch() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Entry
	for _, e := range q.entries {
		if e.State == StatePending {
			out = append(out, e)
		}
	}
	return out
}

func (q *Queue) stateOf(e *Entry) EntryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return e.State
}

func (q *Queue) setState(e *Entry, state EntryState, lastErr string) {
	q.mu.Lock()
	e.State = state
	if lastErr != "" {
		e.LastError = lastErr
	}
	persistErr := q.persistLocked()
	q.mu.Unlock()
	if persistErr != nil {
		q.log.Error("persisting queue state", zap.Error(persistErr))
	}
}

// Pending returns entries still awaiting delivery (pending or in flight).
func (q *Queue) Pending() []*Entry {
	return q.snapshot(func(e *Entry) bool {
		return e.State == StatePending || e.State == StateSyncing
	})
}

// Failed returns entries that exhausted their retry budget.
func (q *Queue) Failed() []*Entry {
	return q.snapshot(func(e *Entry) bool {
		return e.State == StateFailed
	})
}

// Recent returns recently synced entries, kept briefly for UI feedback.
func (q *Queue) Recent() []*Entry {
	values := q.recent.Values()
	out := make([]*Entry, 0, len(values))
	out = append(out, values...)
	return out
}

func (q *Queue) snapshot(keep func(*Entry) bool) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Entry
	for _, e := range q.entries {
		if keep(e) {
			copy := *e
			out = append(out, &copy)
		}
	}
	return out
}

// RetryFailed resets every failed entry's retry counter and makes it
// eligible for the next flush, which is kicked off immediately when online.
func (q *Queue) RetryFailed(ctx context.Context) error {
	q.mu.Lock()
	reset := 0
	for _, e := range q.entries {
		if e.State == StateFailed {
			e.State = StatePending
			e.RetryCount = 0
			reset++
		}
	}
	err := q.persistLocked()
	q.mu.Unlock()
	if err != nil {
		return err
	}

	if reset > 0 {
		q.log.Info("failed entries reset", zap.Int("count", reset))
		if q.conn.Online() {
			// Detached from the caller's context: the operator's HTTP
			// request ends long before the flush does.
			go q.Flush(context.Background())
		}
	}
	return nil
}

// Run drives the automatic flush triggers: the became-online transition and
// a periodic timer while online.
func (q *Queue) Run(ctx context.Context) {
	events := q.conn.Subscribe()
	ticker := time.NewTicker(q.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev == connectivity.BecameOnline {
				q.Flush(ctx)
			}
		case <-ticker.C:
			if q.conn.Online() {
				q.Flush(ctx)
			}
		}
	}
}

// persistLocked writes the current entry list; callers hold q.mu.
func (q *Queue) persistLocked() error {
	snapshot := make([]*Entry, len(q.entries))
	copy(snapshot, q.entries)
	return q.store.Save(snapshot)
}
