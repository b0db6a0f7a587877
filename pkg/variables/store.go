package variables

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// GlobalStore persists global-scope variables shared by all executions of
// all workflows. Writes are last-write-wins and atomic per key.
type GlobalStore interface {
	SetGlobal(key string, value any) error
	GetGlobal(key string) (any, bool, error)
	AllGlobals() (map[string]any, error)
}

// MemoryGlobalStore keeps globals in process memory. Used by tests and the
// file persistence setup.
type MemoryGlobalStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryGlobalStore() *MemoryGlobalStore {
	return &MemoryGlobalStore{values: make(map[string]any)}
}

func (s *MemoryGlobalStore) SetGlobal(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}

func (s *MemoryGlobalStore) GetGlobal(key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok, nil
}

func (s *MemoryGlobalStore) AllGlobals() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out, nil
}

// RedisGlobalStore persists globals in Redis under one hash. Redis SET/HSET
// is atomic per key, which is all the shared-state contract requires.
type RedisGlobalStore struct {
	client  *redis.Client
	hashKey string
	timeout time.Duration
}

// NewRedisGlobalStore creates a store backed by the given Redis client.
func NewRedisGlobalStore(client *redis.Client, namespace string) *RedisGlobalStore {
	if namespace == "" {
		namespace = "dealflow"
	}

	return &RedisGlobalStore{
		client:  client,
		hashKey: namespace + ":variables:global",
		timeout: 5 * time.Second,
	}
}

func (s *RedisGlobalStore) SetGlobal(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal global variable %q: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.HSet(ctx, s.hashKey, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to persist global variable %q: %w", key, err)
	}

	return nil
}

func (s *RedisGlobalStore) GetGlobal(key string) (any, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read global variable %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal global variable %q: %w", key, err)
	}

	return value, true, nil
}

func (s *RedisGlobalStore) AllGlobals() (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	raw, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read global variables: %w", err)
	}

	out := make(map[string]any, len(raw))

	for k, payload := range raw {
		var value any
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			continue
		}

		out[k] = value
	}

	return out, nil
}
