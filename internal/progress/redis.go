package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	progressKeyPrefix = "batch:progress:"

	// Entries expire on their own in case a worker dies mid-batch and
	// never reaches Clear.
	progressTTL = 6 * time.Hour
)

// RedisTracker stores progress in redis so the API server can read entries
// written by a worker in another process. One writer per batch, so the
// read-modify-write in Update does not need a lock.
type RedisTracker struct {
	rdb *redis.Client
}

func NewRedisTracker(rdb *redis.Client) *RedisTracker {
	return &RedisTracker{rdb: rdb}
}

func progressKey(batchID string) string {
	return progressKeyPrefix + batchID
}

func (t *RedisTracker) Initialize(ctx context.Context, batchID string, totalFiles int) error {
	bp := &BatchProgress{
		BatchID:     batchID,
		TotalFiles:  totalFiles,
		Results:     []FileResult{},
		FailedFiles: []string{},
		StartedAt:   time.Now(),
	}
	return t.set(ctx, bp)
}

func (t *RedisTracker) Update(ctx context.Context, batchID string, fn func(*BatchProgress)) error {
	data, err := t.rdb.Get(ctx, progressKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read batch progress: %w", err)
	}

	var bp BatchProgress
	if err := json.Unmarshal(data, &bp); err != nil {
		return fmt.Errorf("decode batch progress: %w", err)
	}
	fn(&bp)
	return t.set(ctx, &bp)
}

func (t *RedisTracker) Get(ctx context.Context, batchID string) (BatchProgress, bool, error) {
	data, err := t.rdb.Get(ctx, progressKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return BatchProgress{}, false, nil
		}
		return BatchProgress{}, false, fmt.Errorf("read batch progress: %w", err)
	}

	var bp BatchProgress
	if err := json.Unmarshal(data, &bp); err != nil {
		return BatchProgress{}, false, fmt.Errorf("decode batch progress: %w", err)
	}
	return bp, true, nil
}

func (t *RedisTracker) Clear(ctx context.Context, batchID string) error {
	return t.rdb.Del(ctx, progressKey(batchID)).Err()
}

func (t *RedisTracker) set(ctx context.Context, bp *BatchProgress) error {
	data, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("encode batch progress: %w", err)
	}
	return t.rdb.Set(ctx, progressKey(bp.BatchID), data, progressTTL).Err()
}
