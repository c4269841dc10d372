package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

var ErrEntryDropped = errors.New("cache entry was dropped")

const (
	memoryStoreNumCounters = 1_000_000
	memoryStoreMaxCost     = 100_000
	memoryStoreBufferItems = 64
)

// MemoryStore is a Store backed by an in-process ristretto cache. It's only suitable for a single instance.
type MemoryStore struct {
	// mu serializes writes so SetIfAbsent is a check-and-set.
	mu    sync.Mutex
	cache *ristretto.Cache
}

func NewMemoryStore() (*MemoryStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        memoryStoreNumCounters,
		MaxCost:            memoryStoreMaxCost,
		BufferItems:        memoryStoreBufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ristretto cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected value type %T for key %q", value, key)
	}
	return b, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(key, value, ttl)
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := validateTTL(ttl); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.cache.Get(key); found {
		return false, nil
	}
	if err := s.set(key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// set must be called with mu held. Wait makes the entry visible to the next Get.
func (s *MemoryStore) set(key string, value []byte, ttl time.Duration) error {
	if !s.cache.SetWithTTL(key, value, 1, ttl) {
		return fmt.Errorf("setting key %q: %w", key, ErrEntryDropped)
	}
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Del(key)
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}

var _ Store = (*MemoryStore)(nil)
