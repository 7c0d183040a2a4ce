package cooldown

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"letsconnect/internal/clock"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewMemory(time.Minute, clk)

	t.Run("First reserve succeeds", func(t *testing.T) {
		wait, ok, err := tracker.Reserve(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, wait)
	})

	t.Run("Second reserve waits", func(t *testing.T) {
		clk.Advance(20 * time.Second)
		wait, ok, err := tracker.Reserve(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 40*time.Second, wait)
	})

	t.Run("Other keys are independent", func(t *testing.T) {
		_, ok, err := tracker.Reserve(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Window closes", func(t *testing.T) {
		clk.Advance(40 * time.Second)
		_, ok, err := tracker.Reserve(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Touch restarts the window", func(t *testing.T) {
		clk.Advance(2 * time.Minute)
		require.NoError(t, tracker.Touch(ctx, "carol@example.com"))
		clk.Advance(time.Second)
		wait, ok, err := tracker.Reserve(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 59*time.Second, wait)
	})
}

func TestMemoryTrackerRelease(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewMemory(time.Minute, clk)

	_, ok, err := tracker.Reserve(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tracker.Release(ctx, "alice@example.com"))

	_, ok, err = tracker.Reserve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tracker.Release(ctx, "unknown@example.com"))
}

func TestMemoryTrackerPrunes(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewMemory(time.Second, clk).(*memoryTracker)

	for i := 0; i < pruneThreshold; i++ {
		require.NoError(t, tracker.Touch(ctx, fmt.Sprintf("user%d@example.com", i)))
	}
	clk.Advance(2 * time.Second)
	require.NoError(t, tracker.Touch(ctx, "fresh"))

	assert.Len(t, tracker.last, 1)
}

func TestZeroWindowDisables(t *testing.T) {
	tracker := NewMemory(0, clock.New())
	for i := 0; i < 3; i++ {
		_, ok, err := tracker.Reserve(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisTracker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode.")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	tracker := NewRedis(client, 2*time.Second)

	_, ok, err := tracker.Reserve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	wait, ok, err := tracker.Reserve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 2*time.Second)

	require.NoError(t, tracker.Touch(ctx, "bob@example.com"))
	_, ok, err = tracker.Reserve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tracker.Release(ctx, "bob@example.com"))
	_, ok, err = tracker.Reserve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(2100 * time.Millisecond)
	_, ok, err = tracker.Reserve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}
