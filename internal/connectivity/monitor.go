package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"trattoria-be/internal/logger"

	"go.uber.org/zap"
)

// Event is a reachability transition. Only transitions are emitted, never
// repeated states.
type Event int

const (
	BecameOnline Event = iota
	BecameOffline
)

func (e Event) String() string {
	if e == BecameOnline {
		return "became_online"
	}
	return "became_offline"
}

// Monitor actively probes a health endpoint and reports online/offline
// transitions. Going offline is immediate; going online is debounced with a
// settle delay so one lucky probe during flapping does not thrash the queue.
type Monitor struct {
	probeURL string
	interval time.Duration
	settle   time.Duration
	client   *http.Client

	mu     sync.RWMutex
	online bool
	subs   []chan Event
}

func NewMonitor(probeURL string, interval, settle, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		settle:   settle,
		client:   &http.Client{Timeout: timeout},
	}
}

// Online returns the current debounced state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe returns a channel receiving transition events. Slow subscribers
// miss events rather than blocking the monitor.
func (m *Monitor) Subscribe() <-chan Event {
	ch := make(chan Event, 4)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run probes until the context is cancelled. It performs one probe
// immediately so the initial state settles fast after startup.
func (m *Monitor) Run(ctx context.Context) {
	log := logger.L().With(zap.String("probe_url", m.probeURL))

	m.step(ctx, log)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.step(ctx, log)
		}
	}
}

func (m *Monitor) step(ctx context.Context, log *zap.Logger) {
	reachable := m.probe(ctx)

	switch {
	case reachable && !m.Online():
		// Debounce: wait out the settle delay, then require a second
		// successful probe before declaring online.
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.settle):
		}
		if m.probe(ctx) {
			m.setOnline(true)
			log.Info("connectivity transition", zap.String("event", BecameOnline.String()))
		}
	case !reachable && m.Online():
		m.setOnline(false)
		log.Warn("connectivity transition", zap.String("event", BecameOffline.String()))
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	ev := BecameOffline
	if online {
		ev = BecameOnline
	}
	subs := make([]chan Event, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
