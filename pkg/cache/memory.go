package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is an in-process TTL map. Suitable for single-node deployments
// and as the fallback when no external store is configured.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	hasExpiry bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	value := append([]byte(nil), entry.value...)
	return value, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryBackend) Clear(ctx context.Context, namespace string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := false
	for key := range m.entries {
		if strings.HasPrefix(key, namespace) {
			delete(m.entries, key)
			cleared = true
		}
	}
	return cleared, nil
}

// Len reports the number of live entries. Test helper.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
