package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	ctx := context.Background()

	r, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, r.Allowed)
	require.Equal(t, int64(1), r.Remaining)

	r, _ = l.Allow(ctx, "10.0.0.1")
	require.True(t, r.Allowed)

	r, _ = l.Allow(ctx, "10.0.0.1")
	require.False(t, r.Allowed)
	require.Equal(t, int64(0), r.Remaining)
	require.Greater(t, r.RetryAfter, time.Duration(0))

	// otra clave, otro contador
	r, _ = l.Allow(ctx, "10.0.0.2")
	require.True(t, r.Allowed)
}

func TestResult(t *testing.T) {
	r := result(5, 3, time.Second)
	require.False(t, r.Allowed)
	require.Equal(t, time.Second, r.RetryAfter)
	require.Equal(t, int64(0), r.Remaining)
}
