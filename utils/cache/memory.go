package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryCache is a process-lifetime JSON cache with the same Get/Set contract as RedisCache.
// Entries never expire.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// GetJSON decodes the value stored under key into dest
func (m *MemoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	raw, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON stores the JSON encoding of value under key
func (m *MemoryCache) SetJSON(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached keys
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
