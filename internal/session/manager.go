package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"plaza.social/internal/auth"
)

// Manager keeps one Cache per identity for a multi-user server. Every cache
// shares the manager's persister and reads the identity from the request
// context.
type Manager struct {
	profiles ProfileStore
	bans     BanStore
	cfg      config

	mu     sync.Mutex
	caches map[string]*managedCache
}

type managedCache struct {
	cache    *Cache
	lastUsed time.Time
}

func NewManager(profiles ProfileStore, bans BanStore, opts ...Option) *Manager {
	return &Manager{
		profiles: profiles,
		bans:     bans,
		cfg:      newConfig(opts),
		caches:   make(map[string]*managedCache),
	}
}

// TTL returns the configured freshness window.
func (m *Manager) TTL() time.Duration {
	return m.cfg.ttl
}

// For returns the cache of userID, creating it on first use.
func (m *Manager) For(userID string) *Cache {
	userID = strings.TrimSpace(userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.caches[userID]
	if !ok {
		entry = &managedCache{cache: m.newCache()}
		m.caches[userID] = entry
	}
	entry.lastUsed = m.cfg.now()
	return entry.cache
}

func (m *Manager) newCache() *Cache {
	return newCache(Sources{
		Identity: auth.RequestIdentity{},
		Profiles: m.profiles,
		Bans:     m.bans,
	}, m.cfg)
}

// InvalidateUser forgets the cached state of userID so its next request
// performs a full fetch.
//
// While the persisted row is being deleted, requests for userID get an
// evicted cache that always fetches and never saves. A refresh already in
// flight is waited out first, so it cannot write the old state back after
// the delete.
func (m *Manager) InvalidateUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	m.mu.Lock()
	entry, ok := m.caches[userID]
	if !ok {
		entry = &managedCache{cache: m.newCache(), lastUsed: m.cfg.now()}
		m.caches[userID] = entry
	}
	entry.cache.evicted.Store(true)
	m.mu.Unlock()

	entry.cache.evict()

	var err error
	if m.cfg.persister != nil {
		err = m.cfg.persister.Delete(ctx, userID)
	}

	m.mu.Lock()
	if m.caches[userID] == entry {
		delete(m.caches, userID)
	}
	m.mu.Unlock()
	return err
}

// Sweep evicts in-memory caches idle for more than twice the TTL and returns
// how many were removed. Persisted entries are left to expire on their own.
func (m *Manager) Sweep() int {
	cutoff := m.cfg.now().Add(-2 * m.cfg.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.caches {
		if entry.lastUsed.Before(cutoff) {
			delete(m.caches, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of in-memory caches.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.caches)
}

// RunSweeper calls Sweep every interval until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
