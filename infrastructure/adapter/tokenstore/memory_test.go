package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

func newMemory(clk *clock.FakeClock) *MemoryStore {
	return NewMemoryStore(jwt.NewCodec(clk, jwt.DefaultExpiryBuffer), logger.NewNopLogger())
}

func TestMemoryStore_StoreAndRead(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	store := newMemory(clk)
	pair := issue(t, clk, time.Hour)

	require.NoError(t, store.Store(ctx, pair))

	access, ok := store.Access(ctx)
	require.True(t, ok)
	assert.Equal(t, pair.AccessToken, access)

	refresh, ok := store.Refresh(ctx)
	require.True(t, ok)
	assert.Equal(t, pair.RefreshToken, refresh)
}

func TestMemoryStore_EntriesLiveUntilExp(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	store := newMemory(clk)
	require.NoError(t, store.Store(ctx, issue(t, clk, time.Hour)))

	clk.Advance(59 * time.Minute)
	_, ok := store.Access(ctx)
	assert.True(t, ok)

	clk.Advance(time.Minute)
	_, ok = store.Access(ctx)
	assert.False(t, ok, "access entry must disappear at its exp")

	_, ok = store.Refresh(ctx)
	assert.True(t, ok, "refresh token has its own lifetime")
}

func TestMemoryStore_SkipsUndecodableTokens(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	store := newMemory(clk)
	pair := issue(t, clk, time.Hour)

	require.NoError(t, store.Store(ctx, valueobject.TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: "dummy_refresh_token_that_expires_later",
	}))

	_, ok := store.Access(ctx)
	assert.True(t, ok)
	_, ok = store.Refresh(ctx)
	assert.False(t, ok)
}

func TestMemoryStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	store := newMemory(clk)
	require.NoError(t, store.Store(ctx, issue(t, clk, time.Hour)))
	require.NoError(t, store.SavePreferences(ctx, `{"theme":"dark"}`))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, ok := store.Access(ctx)
	assert.False(t, ok)
	_, ok = store.Refresh(ctx)
	assert.False(t, ok)
	_, ok = store.Preferences(ctx)
	assert.False(t, ok)
}

func TestMemoryStore_WatchBroadcastsRemovals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Fake(epoch)
	store := newMemory(clk)
	require.NoError(t, store.Store(ctx, issue(t, clk, time.Hour)))

	events, err := store.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	var removed []string
	for len(removed) < 2 {
		select {
		case ev := <-events:
			require.True(t, ev.Removed)
			removed = append(removed, ev.Key)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for removal events")
		}
	}
	assert.ElementsMatch(t, []string{outbound.KeyAccessToken, outbound.KeyRefreshToken}, removed)

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond)
}
