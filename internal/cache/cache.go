// Package cache provides the key/value store with TTL used for short-lived coordination state: idempotency locks
// and revoked tokens.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTTL = errors.New("ttl must be greater than zero")

// Store is a key/value store where every entry expires. Implementations must make SetIfAbsent atomic.
type Store interface {
	// Get returns the value stored for key. The boolean is false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent stores value only if key is not present, and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type StoreType string

const (
	StoreTypeMemory StoreType = "MEMORY"
	StoreTypeRedis  StoreType = "REDIS"
)

func ParseStoreType(storeTypeStr string) (StoreType, error) {
	storeType := StoreType(strings.ToUpper(strings.TrimSpace(storeTypeStr)))
	switch storeType {
	case StoreTypeMemory, StoreTypeRedis:
		return storeType, nil
	default:
		return "", fmt.Errorf("invalid cache store type %q", storeTypeStr)
	}
}

type StoreOptions struct {
	Type     StoreType
	RedisURL string
}

// NewStore builds the store configured in opts.
func NewStore(ctx context.Context, opts StoreOptions) (Store, error) {
	switch opts.Type {
	case StoreTypeMemory:
		return NewMemoryStore()
	case StoreTypeRedis:
		client, err := NewRedisClient(ctx, opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("creating redis client: %w", err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported cache store type %q", opts.Type)
	}
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
