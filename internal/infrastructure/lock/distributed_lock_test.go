package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	first := locker.NewLock("k", time.Second)
	require.NoError(t, first.Lock(ctx, time.Millisecond, 1))

	second := locker.NewLock("k", time.Second)
	assert.ErrorIs(t, second.Lock(ctx, time.Millisecond, 3), ErrLockFailed)

	// 不同 key 互不影响
	other := locker.NewLock("other", time.Second)
	require.NoError(t, other.Lock(ctx, time.Millisecond, 1))

	require.NoError(t, first.Unlock(ctx))
	assert.NoError(t, second.Lock(ctx, time.Millisecond, 1))
}

func TestLocalLocker_SerializesCriticalSection(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := locker.NewLock("daily", time.Second)
			if !assert.NoError(t, l.Lock(ctx, time.Millisecond, 5000)) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			_ = l.Unlock(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	locker := NewLocalLocker()
	held := locker.NewLock("k", time.Second)
	require.NoError(t, held.Lock(context.Background(), time.Millisecond, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := locker.NewLock("k", time.Second).Lock(ctx, 10*time.Millisecond, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "economy:lock:daily:g1:u1", DailyLockKey("g1", "u1"))
	assert.NotEqual(t, DailyLockKey("g1", "u1"), SwapLockKey("g1", "u1"))
}

func TestLinkLockKeys(t *testing.T) {
	assert.Equal(t, LinkIGNLockKey("g", 3, " Alice "), LinkIGNLockKey("g", 3, "ALICE"))
	assert.NotEqual(t, LinkIGNLockKey("g", 3, "alice"), LinkIGNLockKey("g", 4, "alice"))
	assert.NotEqual(t, LinkUserLockKey("g", 3, "alice"), LinkIGNLockKey("g", 3, "alice"))
}
