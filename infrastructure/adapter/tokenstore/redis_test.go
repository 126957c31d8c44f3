package tokenstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

func newRedis(t *testing.T, clk clock.Clock) *RedisStore {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	store, err := NewRedisStoreFromURL(context.Background(), url, "test-"+uuid.NewString(),
		jwt.NewCodec(clk, jwt.DefaultExpiryBuffer), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Clear(context.Background())
		store.Close()
	})
	return store
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		payload string
		want    outbound.StoreEvent
		ok      bool
	}{
		{"removed:" + outbound.KeyAccessToken, outbound.StoreEvent{Key: outbound.KeyAccessToken, Removed: true}, true},
		{"stored:" + outbound.KeyRefreshToken, outbound.StoreEvent{Key: outbound.KeyRefreshToken}, true},
		{"removed:", outbound.StoreEvent{}, false},
		{"renamed:x", outbound.StoreEvent{}, false},
		{"garbage", outbound.StoreEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, ok := parseEvent(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisStore_StoreClearAndWatch(t *testing.T) {
	// Real time: Redis expires keys on its own clock.
	clk := clock.Real()
	store := newRedis(t, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Watch(ctx)
	require.NoError(t, err)

	pair := issue(t, clk, time.Hour)
	require.NoError(t, store.Store(ctx, pair))

	access, ok := store.Access(ctx)
	require.True(t, ok)
	assert.Equal(t, pair.AccessToken, access)

	require.NoError(t, store.Clear(ctx))
	_, ok = store.Access(ctx)
	assert.False(t, ok)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Key == outbound.KeyAccessToken && ev.Removed {
				return
			}
		case <-deadline:
			t.Fatal("no removal event published")
		}
	}
}
