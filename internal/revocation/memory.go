package revocation

import (
	"context"
	"sync"
	"time"
)

type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRegistry) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[jti]; ok {
		return nil
	}
	m.entries[jti] = Entry{JTI: jti, RevokedAt: m.now(), ExpiresAt: expiresAt.UTC()}
	return nil
}

func (m *MemoryRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[jti]
	return ok, nil
}

func (m *MemoryRegistry) Purge(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for jti, entry := range m.entries {
		if !entry.ExpiresAt.After(now) {
			delete(m.entries, jti)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
