package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es la variante local de RedisLimiter: mismo algoritmo,
// contadores en go-cache con TTL de una ventana.
type MemoryLimiter struct {
	c      *gocache.Cache
	Max    int64
	Window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{c: gocache.New(window, window), Max: int64(max), Window: window}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	k := windowKey("", key, l.Window, now)

	_ = l.c.Add(k, int64(0), l.Window) // falla si ya existe: ok
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	retry := now.Truncate(l.Window).Add(l.Window).Sub(now)
	return result(hits, l.Max, retry), nil
}
