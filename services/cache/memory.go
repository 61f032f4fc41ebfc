package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCacheService implements CacheService in process memory
type MemoryCacheService struct {
	store *gocache.Cache
}

// NewMemoryCacheService creates an in-process cache
func NewMemoryCacheService(cleanupInterval time.Duration) *MemoryCacheService {
	return &MemoryCacheService{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get retrieves a value from the cache
func (m *MemoryCacheService) Get(key string) ([]byte, error) {
	value, ok := m.store.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	data := value.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a copy of value. A zero expiration keeps the value until deleted.
func (m *MemoryCacheService) Set(key string, value []byte, expiration time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.store.Set(key, data, expiration)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCacheService) Delete(key string) error {
	m.store.Delete(key)
	return nil
}
