// Package cache keeps computed analytics reports in memory between writes.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"spendwise/internal/log"
)

// Cache is what consumers need from a report cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	// DeletePrefix drops every key starting with prefix and reports how
	// many were dropped.
	DeletePrefix(prefix string) int
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRatio is hits over lookups, 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	lookups := s.Hits + s.Misses
	if lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(lookups)
}

// Sweeper drops entries that expired at or before now.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Manager sweeps registered caches on a fixed interval.
type Manager struct {
	logger   *log.Logger
	mu       sync.Mutex
	sweepers []Sweeper
	swept    atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		stop:   make(chan struct{}),
	}
}

func (m *Manager) Register(s Sweeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepers = append(m.sweepers, s)
}

// Start launches the sweep loop. It must be called at most once.
func (m *Manager) Start(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				m.SweepNow(now)
			case <-m.stop:
				return
			}
		}
	}()
}

// SweepNow runs one pass over every registered cache.
func (m *Manager) SweepNow(now time.Time) int {
	m.mu.Lock()
	sweepers := append([]Sweeper(nil), m.sweepers...)
	m.mu.Unlock()

	total := 0
	for _, s := range sweepers {
		total += s.Sweep(now)
	}
	if total > 0 {
		m.swept.Add(int64(total))
		m.logger.Debug("Expired cache entries removed", "count", total)
	}
	return total
}

// Swept is the number of entries removed by sweeps so far.
func (m *Manager) Swept() int64 {
	return m.swept.Load()
}

// Stop ends the sweep loop and waits for it. Safe to call more than once,
// or without Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
