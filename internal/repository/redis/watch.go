package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gomate-auth/internal/client"
	"gomate-auth/internal/util"
)

const defaultMaxRetries = 10

// ErrContention is returned when a transaction kept losing the optimistic
// race on its watched keys.
var ErrContention = errors.New("redis store: too much contention")

// watchWithRetry runs fn under WATCH on keys and runs it again whenever one of
// them changed before EXEC. fn must queue its writes with tx.TxPipelined and
// recompute everything it read on each run.
func watchWithRetry(ctx context.Context, c *client.RedisClient, maxRetries int, fn func(*goredis.Tx) error, keys ...string) error {
	for i := 0; i < maxRetries; i++ {
		err := c.Watch(ctx, fn, keys...)
		if errors.Is(err, goredis.TxFailedErr) {
			util.Debug("Redis transaction lost race, retrying", zap.Strings("keys", keys), zap.Int("attempt", i+1))
			continue
		}
		return err
	}
	util.Warn("Redis transaction gave up", zap.Strings("keys", keys), zap.Int("retries", maxRetries))
	return ErrContention
}
