// Package redis shares rate limit counters between adsignd replicas
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/adsign/internal/adsignd/ratelimit"
)

// Store implements ratelimit.Store with fixed windows in Redis
type Store struct {
	client *redis.Client
}

var _ ratelimit.Store = (*Store)(nil)

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func counterKey(key ratelimit.LimitKey) string {
	return "adsign:rate:" + key.Type + ":" + key.RemoteIP
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
}

// Increment bumps the counter; the first hit in a window sets its expiry
func (s *Store) Increment(ctx context.Context, key ratelimit.LimitKey, limit ratelimit.Limit) (int, error) {
	k := counterKey(key)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, limit.Period)
		return nil
	})
	if err != nil {
		return 0, storeError(err)
	}
	return int(incr.Val()), nil
}

func (s *Store) Reset(ctx context.Context, key ratelimit.LimitKey) error {
	if err := s.client.Del(ctx, counterKey(key)).Err(); err != nil {
		return storeError(err)
	}
	return nil
}
