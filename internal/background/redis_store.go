package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix = "jobscout:run:"
	runIndexKey  = "jobscout:runs"
)

// RedisRunStore keeps run results in Redis so they survive restarts and are
// visible to every API replica. Each result expires after ttl.
type RedisRunStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRunStore creates a store on an existing client
func NewRedisRunStore(client *redis.Client, ttl time.Duration) *RedisRunStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRunStore{client: client, ttl: ttl}
}

func runKey(id string) string { return runKeyPrefix + id }

// Store stores a run result and indexes it by creation time
func (s *RedisRunStore) Store(ctx context.Context, result *RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, runKey(result.RunID), data, s.ttl)
	pipe.ZAdd(ctx, runIndexKey, redis.Z{Score: float64(result.CreatedAt.UnixNano()), Member: result.RunID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store run result: %w", err)
	}
	return nil
}

// Get retrieves a run result by id
func (s *RedisRunStore) Get(ctx context.Context, runID string) (*RunResult, error) {
	data, err := s.client.Get(ctx, runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run result: %w", err)
	}

	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	return &result, nil
}

// Update replaces a stored result, keeping the original expiry window
func (s *RedisRunStore) Update(ctx context.Context, result *RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	ok, err := s.client.SetXX(ctx, runKey(result.RunID), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update run result: %w", err)
	}
	if !ok {
		return ErrRunNotFound
	}
	return nil
}

// Cleanup trims the index; the results themselves expire by TTL
func (s *RedisRunStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	if err := s.client.ZRemRangeByScore(ctx, runIndexKey, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return fmt.Errorf("failed to clean run index: %w", err)
	}
	return nil
}

// List returns indexed results newest first, skipping expired ones
func (s *RedisRunStore) List(ctx context.Context) ([]*RunResult, error) {
	ids, err := s.client.ZRevRange(ctx, runIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	results := make([]*RunResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.Get(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
