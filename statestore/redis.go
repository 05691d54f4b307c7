package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/callwise/arena/results"
)

// RedisStore persists run state in Redis so results survive process
// restarts and are visible to other tooling. Keys live under the
// arena:run:<id> family:
//
//	arena:run:<id>            hash of testID -> result JSON
//	arena:run:<id>:order      list of testIDs in insertion order
//	arena:run:<id>:summary    summary JSON, written by CompleteRun
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires run keys after d. Zero means keep forever.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = d
	}
}

// NewRedisStore creates a store backed by the given client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func runKey(runID string) string     { return "arena:run:" + runID }
func orderKey(runID string) string   { return runKey(runID) + ":order" }
func summaryKey(runID string) string { return runKey(runID) + ":summary" }

func (s *RedisStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	// A placeholder field makes the run visible before any result lands.
	if err := s.client.HSet(ctx, runKey(id), "_created", time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
		return "", fmt.Errorf("statestore: create run: %w", err)
	}
	s.expire(ctx, id)
	return id, nil
}

func (s *RedisStore) SaveResult(ctx context.Context, runID, testID string, r *results.TestResult) error {
	if r == nil {
		return fmt.Errorf("statestore: nil result")
	}
	exists, err := s.client.Exists(ctx, runKey(runID)).Result()
	if err != nil {
		return fmt.Errorf("statestore: save result: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("statestore: marshal result: %w", err)
	}

	// First write for this testID appends to the order list; overwrites
	// keep their original position.
	already, err := s.client.HExists(ctx, runKey(runID), testID).Result()
	if err != nil {
		return fmt.Errorf("statestore: save result: %w", err)
	}
	if err := s.client.HSet(ctx, runKey(runID), testID, data).Err(); err != nil {
		return fmt.Errorf("statestore: save result: %w", err)
	}
	if !already {
		if err := s.client.RPush(ctx, orderKey(runID), testID).Err(); err != nil {
			return fmt.Errorf("statestore: save result: %w", err)
		}
	}
	s.expire(ctx, runID)
	return nil
}

func (s *RedisStore) GetResult(ctx context.Context, runID, testID string) (*results.TestResult, error) {
	data, err := s.client.HGet(ctx, runKey(runID), testID).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("statestore: result %s/%s: %w", runID, testID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: get result: %w", err)
	}
	var r results.TestResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal result: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) ListResults(ctx context.Context, runID string) ([]*results.TestResult, error) {
	exists, err := s.client.Exists(ctx, runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("statestore: list results: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}

	testIDs, err := s.client.LRange(ctx, orderKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("statestore: list results: %w", err)
	}
	out := make([]*results.TestResult, 0, len(testIDs))
	for _, testID := range testIDs {
		r, err := s.GetResult(ctx, runID, testID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) CompleteRun(ctx context.Context, runID string, sum *results.Summary) error {
	exists, err := s.client.Exists(ctx, runKey(runID)).Result()
	if err != nil {
		return fmt.Errorf("statestore: complete run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("statestore: marshal summary: %w", err)
	}
	if err := s.client.Set(ctx, summaryKey(runID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("statestore: complete run: %w", err)
	}
	s.expire(ctx, runID)
	return nil
}

func (s *RedisStore) GetSummary(ctx context.Context, runID string) (*results.Summary, error) {
	data, err := s.client.Get(ctx, summaryKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("statestore: summary %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: get summary: %w", err)
	}
	var sum results.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal summary: %w", err)
	}
	return &sum, nil
}

func (s *RedisStore) expire(ctx context.Context, runID string) {
	if s.ttl <= 0 {
		return
	}
	s.client.Expire(ctx, runKey(runID), s.ttl)
	s.client.Expire(ctx, orderKey(runID), s.ttl)
}
