package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
)

func exerciseAdvisor(t *testing.T, advisor repositories.LockAdvisor, line string) {
	t.Helper()
	ctx := context.Background()
	lineID := entities.OrderLineID("L-" + line)

	holder, err := advisor.LockedBy(ctx, lineID)
	require.NoError(t, err)
	assert.Empty(t, holder)

	ok, err := advisor.Acquire(ctx, lineID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = advisor.Acquire(ctx, lineID, "alice")
	require.NoError(t, err)
	assert.True(t, ok, "re-acquiring an own lock succeeds")

	ok, err = advisor.Acquire(ctx, lineID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err = advisor.LockedBy(ctx, lineID)
	require.NoError(t, err)
	assert.Equal(t, "alice", holder)

	require.NoError(t, advisor.Release(ctx, lineID, "bob"))
	holder, err = advisor.LockedBy(ctx, lineID)
	require.NoError(t, err)
	assert.Equal(t, "alice", holder, "only the holder can release")

	require.NoError(t, advisor.Release(ctx, lineID, "alice"))
	holder, err = advisor.LockedBy(ctx, lineID)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestMemoryAdvisor(t *testing.T) {
	exerciseAdvisor(t, NewMemoryAdvisor(0), "1")
}

func TestMemoryAdvisor_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	advisor := NewMemoryAdvisor(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := advisor.Acquire(ctx, "L1", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	holder, err := advisor.LockedBy(ctx, "L1")
	require.NoError(t, err)
	assert.Empty(t, holder, "lapsed locks are free")

	ok, err = advisor.Acquire(ctx, "L1", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRedisAdvisor_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisAdvisor_Integration(t *testing.T) {
	advisor := DialRedisAdvisor("localhost:6379", "", 0, 5*time.Second)
	defer advisor.Close()
	if err := advisor.Ping(context.Background()); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	exerciseAdvisor(t, advisor, fmt.Sprintf("it-%d", time.Now().UnixNano()))
}
