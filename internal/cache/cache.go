// Package cache holds computed reports keyed by period so dashboards and VAT
// returns are not re-aggregated on every request. Entries are invalidated
// explicitly when a transaction in the period changes and expire after a TTL.
package cache

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Cache is the contract shared by the in-process LRU and the Redis cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Size returns the current number of entries.
	Size() int
}

// Stats counts lookups. It is safe for concurrent use.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (s *Stats) record(hit bool) {
	if hit {
		s.hits.Add(1)
		return
	}
	s.misses.Add(1)
}

// Snapshot returns hit and miss counts.
func (s *Stats) Snapshot() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Cleaner is implemented by caches that must sweep expired entries
// themselves. Redis expires keys on its own and does not need it.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs the periodic sweep for registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	logger      *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}
}

// Register adds c to the sweep if it needs one.
func (m *Manager) Register(c any) {
	if cleaner, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cleaner)
	}
}

// StartCleanup begins the sweep loop. Stop must be called exactly once
// after StartCleanup.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, c := range m.caches {
				removed += c.CleanExpired()
			}
			if removed > 0 {
				m.logger.Debug("Expired cache entries removed", "count", removed)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
