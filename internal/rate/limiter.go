// Package rate limita la tasa de escrituras que llegan al coordinador.
// Ventana fija: en Redis si hay varios nodos detrás de un balanceador, en memoria si no.
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE)
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "policyreg:rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window}
}

func windowKey(prefix, key string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), now.Truncate(window).Unix())
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := windowKey(l.Prefix, key, l.Window, time.Now().UTC())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// expiry en el primer hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
		ttl = l.Client.TTL(ctx, redisKey)
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = time.Duration(math.Ceil(l.Window.Seconds())) * time.Second
	}
	return result(incr.Val(), l.Max, retry), nil
}

func result(hits, max int64, retry time.Duration) Result {
	res := Result{Allowed: hits <= max, Remaining: max - hits, CurrentHits: hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = retry
	}
	return res
}
