package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cancelKeyPrefix = "batch:cancel:"
	cancelTTL       = 24 * time.Hour
)

// CancelFlag is the cooperative cancellation signal for a batch. The API
// sets it, the processor checks it between files. A file already being
// transcoded runs to completion.
type CancelFlag struct {
	rdb *redis.Client
}

func NewCancelFlag(rdb *redis.Client) *CancelFlag {
	return &CancelFlag{rdb: rdb}
}

func cancelKey(batchID string) string {
	return cancelKeyPrefix + batchID
}

func (f *CancelFlag) Set(ctx context.Context, batchID string) error {
	return f.rdb.Set(ctx, cancelKey(batchID), "1", cancelTTL).Err()
}

// IsSet reports whether cancellation was requested. Errors read as "not
// cancelled" so a redis hiccup never aborts a healthy batch.
func (f *CancelFlag) IsSet(ctx context.Context, batchID string) bool {
	n, err := f.rdb.Exists(ctx, cancelKey(batchID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (f *CancelFlag) Clear(ctx context.Context, batchID string) error {
	return f.rdb.Del(ctx, cancelKey(batchID)).Err()
}
