package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// Store is a byte-valued key space with its own expiry policy.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Flush removes every entry and reports how many there were, or -1 if
	// the store cannot tell.
	Flush(ctx context.Context) (int64, error)
	Name() string
}

// MemoryStore is a size-bounded LRU whose entries also expire after a TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore holds at most size entries (0 for unbounded) for at most
// ttl each (0 for no expiry).
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, value)
	return nil
}

func (s *MemoryStore) Flush(context.Context) (int64, error) {
	n := s.lru.Len()
	s.lru.Purge()
	return int64(n), nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int { return s.lru.Len() }

func (s *MemoryStore) Name() string { return "memory" }

// RedisClient is the subset of pkg/redis.Client the RedisStore uses.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// RedisStore keeps entries in Redis under a key prefix, shared by every
// searcher instance. Calls go through a circuit breaker so an unreachable
// Redis costs one fast failure per request instead of a timeout.
type RedisStore struct {
	client  RedisClient
	breaker *resilience.CircuitBreaker
	prefix  string
	ttl     time.Duration
}

// DefaultKeyPrefix namespaces result cache keys in Redis.
const DefaultKeyPrefix = "docrank:search:"

// NewRedisStore creates a RedisStore. A nil breaker gets a default one.
func NewRedisStore(client RedisClient, breaker *resilience.CircuitBreaker, prefix string, ttl time.Duration) *RedisStore {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{})
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, breaker: breaker, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		value, ok, err = s.client.Get(ctx, s.prefix+key)
		return err
	})
	return value, ok, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.breaker.Execute(func() error {
		return s.client.Set(ctx, s.prefix+key, value, s.ttl)
	})
}

func (s *RedisStore) Flush(ctx context.Context) (int64, error) {
	var n int64
	err := s.breaker.Execute(func() error {
		var err error
		n, err = s.client.DeleteByPrefix(ctx, s.prefix)
		return err
	})
	return n, err
}

func (s *RedisStore) Name() string { return "redis" }

// Breaker exposes the store's circuit breaker for health reporting.
func (s *RedisStore) Breaker() *resilience.CircuitBreaker { return s.breaker }

// IsUnavailable reports whether err came from an open circuit rather than
// from Redis itself.
func IsUnavailable(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen)
}
