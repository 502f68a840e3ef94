package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is a process-local Suppressor. Entries live in a mutex-guarded map
// and are pruned by a background sweep started with Start.
type Memory struct {
	clock      clockwork.Clock
	window     time.Duration
	sweepEvery time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Memory suppressor.
type Option func(*Memory)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Memory) { m.clock = c }
}

// WithWindow sets the duplicate window.
func WithWindow(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithSweepInterval sets how often expired entries are pruned.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.sweepEvery = d
		}
	}
}

// NewMemory creates an in-memory suppressor with a 3s window and a 5s
// sweep unless overridden.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		clock:      clockwork.NewRealClock(),
		window:     DefaultWindow,
		sweepEvery: DefaultSweepInterval,
		seen:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckAndRegister admits r and records it, or rejects it if an identical
// request was admitted less than one window ago. Rejections do not extend
// the window. Non-mutating requests are always admitted and never recorded.
func (m *Memory) CheckAndRegister(_ context.Context, r Request) (Decision, error) {
	if !IsMutating(r.Method) {
		return Admit, nil
	}
	key := Key(r)
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.seen[key]; ok {
		if elapsed := now.Sub(last); elapsed < m.window {
			return reject(m.window - elapsed), nil
		}
	}
	m.seen[key] = now
	return Admit, nil
}

// Sweep drops entries at least one window old and returns how many were
// removed.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, last := range m.seen {
		if now.Sub(last) >= m.window {
			delete(m.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Start launches the background sweep. Call Stop to end it.
func (m *Memory) Start() {
	if m == nil || m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	ticker := m.clock.NewTicker(m.sweepEvery)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				m.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the background sweep and waits for it to exit.
func (m *Memory) Stop() {
	if m == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
