package printjob

import (
	"context"
	"sort"
	"sync"
	"time"

	"trattoria-be/internal/logger"
	"trattoria-be/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// Enqueue appends a rendered job to the identity's FIFO queue.
	Enqueue(ctx context.Context, mac, dialect string, payload []byte) (string, error)

	// Retrieve hands out the head job without removing it and marks it
	// delivered. Re-polling before confirmation returns the same job.
	// A nil job means "no work", which is not an error.
	Retrieve(ctx context.Context, mac string) (*Job, error)

	// Confirm removes the head job if the identifier matches. Stale or
	// unknown identifiers are a harmless no-op.
	Confirm(ctx context.Context, mac, jobID string)

	// Register upserts the printer's identity and declared dialect.
	Register(ctx context.Context, mac, dialect string) *Registration

	// Dialect returns the declared dialect for an identity, escpos when
	// unknown.
	Dialect(mac string) string

	Status(ctx context.Context) *Status

	// Run drives the background expiry sweep until ctx is cancelled.
	Run(ctx context.Context)
}

// printerQueue is the unit of mutual exclusion: operations on one identity
// serialize on its own lock, unrelated printers proceed concurrently.
type printerQueue struct {
	mu   sync.Mutex
	jobs []*Job
}

type service struct {
	mu       sync.RWMutex // guards the two maps, never held across queue work
	queues   map[string]*printerQueue
	printers map[string]*Registration

	completed metrics.Counter
	expired   metrics.Counter

	retention  time.Duration
	sweepEvery time.Duration
	now        func() time.Time

	log *zap.Logger
}

func NewService(retention, sweepEvery time.Duration) Service {
	if retention <= 0 {
		retention = time.Hour
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &service{
		queues:     make(map[string]*printerQueue),
		printers:   make(map[string]*Registration),
		retention:  retention,
		sweepEvery: sweepEvery,
		now:        time.Now,
		log:        logger.L().Named("printjob"),
	}
}

func (s *service) Enqueue(ctx context.Context, mac, dialect string, payload []byte) (string, error) {
	if mac == "" {
		return "", ErrNoPrinter
	}
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	job := &Job{
		ID:         uuid.New().String(),
		PrinterMAC: mac,
		Dialect:    dialect,
		Payload:    payload,
		State:      StatePending,
		CreatedAt:  s.now().UTC(),
	}

	q := s.queueFor(mac)
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	logger.FromCtx(ctx).Info("print job enqueued",
		zap.String("job_id", job.ID),
		zap.String("printer_id", mac),
		zap.String("dialect", dialect),
		zap.Int("queue_depth", depth),
	)
	return job.ID, nil
}

func (s *service) Retrieve(ctx context.Context, mac string) (*Job, error) {
	if mac == "" {
		return nil, ErrNoPrinter
	}

	s.touchPoll(mac)

	q := s.queueFor(mac)
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, nil
	}

	head := q.jobs[0]
	if head.State == StatePending {
		now := s.now().UTC()
		head.State = StateDelivered
		head.DeliveredAt = &now
		logger.FromCtx(ctx).Info("print job delivered",
			zap.String("job_id", head.ID),
			zap.String("printer_id", mac),
		)
	}
	// Delivered-but-unconfirmed head is returned again on re-poll: the
	// printer may legitimately ask twice before the paper is out.
	return head, nil
}

func (s *service) Confirm(ctx context.Context, mac, jobID string) {
	if mac == "" || jobID == "" {
		return
	}

	s.touchPoll(mac)

	q := s.queueFor(mac)
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 || q.jobs[0].ID != jobID {
		// Already confirmed, or expired and purged. Not an error.
		logger.FromCtx(ctx).Debug("stale confirm ignored",
			zap.String("job_id", jobID),
			zap.String("printer_id", mac),
		)
		return
	}

	head := q.jobs[0]
	head.State = StateCompleted
	q.jobs = q.jobs[1:]
	s.completed.Inc()

	logger.FromCtx(ctx).Info("print job completed",
		zap.String("job_id", head.ID),
		zap.String("printer_id", mac),
		zap.Duration("age", s.now().UTC().Sub(head.CreatedAt)),
	)
}

func (s *service) Register(ctx context.Context, mac, dialect string) *Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.printers[mac]
	if !ok {
		reg = &Registration{MAC: mac, RegisteredAt: s.now().UTC()}
		s.printers[mac] = reg
	}
	if dialect != "" {
		reg.Dialect = dialect
	}

	logger.FromCtx(ctx).Info("printer registered",
		zap.String("printer_id", mac),
		zap.String("dialect", reg.Dialect),
	)
	out := *reg
	return &out
}

func (s *service) Dialect(mac string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reg, ok := s.printers[mac]; ok && reg.Dialect != "" {
		return reg.Dialect
	}
	return "escpos"
}

func (s *service) Status(_ context.Context) *Status {
	s.mu.RLock()
	macs := make([]string, 0, len(s.queues))
	for mac := range s.queues {
		macs = append(macs, mac)
	}
	// Snapshot registrations by value while the lock is held; touchPoll
	// rewrites LastPollAt concurrently with status reads.
	registrations := make(map[string]Registration, len(s.printers))
	for mac, reg := range s.printers {
		registrations[mac] = *reg
	}
	s.mu.RUnlock()

	printers := make([]Registration, 0, len(registrations))
	for _, reg := range registrations {
		printers = append(printers, reg)
	}

	st := &Status{
		CompletedJobs:      int64(s.completed.Load()),
		ExpiredJobs:        int64(s.expired.Load()),
		RegisteredPrinters: len(printers),
		Printers:           printers,
	}

	for _, mac := range macs {
		q := s.queueFor(mac)
		q.mu.Lock()
		for _, job := range q.jobs {
			st.TotalJobs++
			switch job.State {
			case StatePending:
				st.PendingJobs++
			case StateDelivered:
				st.DeliveredJobs++
			}
		}
		depth := len(q.jobs)
		q.mu.Unlock()

		// Jobs waiting on an identity that never polled is an operational
		// fault distinct from an empty queue.
		if depth > 0 {
			reg, ok := registrations[mac]
			if !ok || reg.LastPollAt == nil {
				st.NeverPolled = append(st.NeverPolled, mac)
			}
		}
	}

	sort.Strings(st.NeverPolled)
	sort.Slice(st.Printers, func(i, j int) bool { return st.Printers[i].MAC < st.Printers[j].MAC })
	return st
}

// Run sweeps expired jobs on its own timer, independent of request handling.
func (s *service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep purges jobs older than the retention window. Each queue is locked
// only for its own scan, so poll/confirm on other identities never wait.
func (s *service) sweep() {
	cutoff := s.now().UTC().Add(-s.retention)

	s.mu.RLock()
	macs := make([]string, 0, len(s.queues))
	for mac := range s.queues {
		macs = append(macs, mac)
	}
	s.mu.RUnlock()

	for _, mac := range macs {
		q := s.queueFor(mac)
		q.mu.Lock()
		kept := q.jobs[:0]
		for _, job := range q.jobs {
			if job.CreatedAt.After(cutoff) {
				kept = append(kept, job)
				continue
			}
			// An unconfirmed job aging out means the printer stopped
			// polling; surface it, never drop it silently.
			job.State = StateExpired
			s.expired.Inc()
			s.log.Warn("print job expired unconfirmed",
				zap.String("job_id", job.ID),
				zap.String("printer_id", mac),
				zap.Time("created_at", job.CreatedAt),
			)
		}
		q.jobs = kept
		q.mu.Unlock()
	}
}

func (s *service) queueFor(mac string) *printerQueue {
	s.mu.RLock()
	q, ok := s.queues[mac]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok = s.queues[mac]; ok {
		return q
	}
	q = &printerQueue{}
	s.queues[mac] = q
	return q
}

// touchPoll records the poll timestamp, creating a bare registration for
// identities that poll before anyone registered them.
func (s *service) touchPoll(mac string) {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.printers[mac]
	if !ok {
		reg = &Registration{MAC: mac, RegisteredAt: now}
		s.printers[mac] = reg
	}
	reg.LastPollAt = &now
}
