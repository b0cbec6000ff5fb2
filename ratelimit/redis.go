package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultPrefix namespaces the keys Redis stores.
const DefaultPrefix = "accounts:throttle:"

// Redis keeps cooldowns in Redis so they hold across processes. A cooldown
// is a key set with NX and a TTL equal to the interval.
type Redis struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
}

func NewRedis(client redis.UniversalClient, interval time.Duration) *Redis {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Redis{
		client:   client,
		interval: interval,
		prefix:   DefaultPrefix,
	}
}

// WithPrefix changes the key namespace.
func (r *Redis) WithPrefix(prefix string) *Redis {
	r.prefix = prefix
	return r
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key

	ok, err := r.client.SetNX(ctx, k, time.Now().Unix(), r.interval).Result()
	if err != nil {
		return false, 0, oops.In("ratelimit").
			Code("THROTTLE_UNAVAILABLE").
			With("key", key).
			Wrapf(err, "failed to set cooldown")
	}

	if ok {
		return true, 0, nil
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, oops.In("ratelimit").
			Code("THROTTLE_UNAVAILABLE").
			With("key", key).
			Wrapf(err, "failed to read cooldown")
	}

	if ttl < 0 {
		ttl = r.interval
	}

	return false, ttl, nil
}
