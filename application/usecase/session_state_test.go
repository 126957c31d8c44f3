package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/domain/entity"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

func TestSessionState_StartsAnonymous(t *testing.T) {
	h := newHarness(t)
	snap := h.state.Snapshot()

	assert.Equal(t, entity.PhaseAnonymous, snap.Phase)
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Tokens)
}

func TestSessionState_LoginLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tokens := h.pair(t, "admin")
	user := entity.User{ID: "7", Email: "user@hiprotech.com", FirstName: "Ada", LastName: "L", Role: entity.RoleAdmin}

	require.NoError(t, h.state.BeginAuth())
	snap := h.state.Snapshot()
	assert.Equal(t, entity.PhaseAuthenticating, snap.Phase)
	assert.True(t, snap.Loading)

	require.NoError(t, h.state.AuthSucceeded(ctx, user, tokens))
	snap = h.state.Snapshot()
	assert.Equal(t, entity.PhaseAuthenticated, snap.Phase)
	assert.True(t, snap.Authenticated)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Ada", snap.User.FirstName)
	assert.True(t, h.state.IsAdmin())

	stored, ok := h.store.Access(ctx)
	require.True(t, ok)
	assert.Equal(t, tokens.AccessToken, stored)

	require.NoError(t, h.state.Logout(ctx))
	require.NoError(t, h.state.Logout(ctx))
	snap = h.state.Snapshot()
	assert.Equal(t, entity.AnonymousSession(), snap)
	_, ok = h.store.Refresh(ctx)
	assert.False(t, ok)
}

func TestSessionState_AuthSucceededRequiresAuthenticating(t *testing.T) {
	h := newHarness(t)

	err := h.state.AuthSucceeded(context.Background(), entity.User{ID: "7"}, h.pair(t, "admin"))
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeInvalidTransition, apperr.CodeOf(err))
	assert.False(t, h.state.Snapshot().Authenticated)
}

func TestSessionState_BeginAuthTwiceFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.state.BeginAuth())
	assert.Error(t, h.state.BeginAuth())
}

func TestSessionState_RejectsExpiredTokenAtLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tokens := h.pair(t, "admin")
	// Inside the five-minute buffer counts as expired.
	h.clock.Advance(56 * time.Minute)

	require.NoError(t, h.state.BeginAuth())
	err := h.state.AuthSucceeded(ctx, entity.User{ID: "7"}, tokens)
	require.Error(t, err)

	snap := h.state.Snapshot()
	assert.Equal(t, entity.PhaseAnonymous, snap.Phase)
	assert.Equal(t, "received an invalid session token", snap.Error)
	_, ok := h.store.Access(ctx)
	assert.False(t, ok)
}

func TestSessionState_RejectsUndecodableToken(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.state.BeginAuth())

	err := h.state.AuthSucceeded(context.Background(), entity.User{ID: "7"}, valueobject.TokenPair{AccessToken: "garbage", RefreshToken: "x"})
	require.Error(t, err)
	assert.False(t, h.state.Snapshot().Authenticated)
}

func TestSessionState_AuthFailedKeepsMessage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.state.BeginAuth())
	h.state.AuthFailed("Invalid credentials")

	snap := h.state.Snapshot()
	assert.Equal(t, entity.PhaseAnonymous, snap.Phase)
	assert.Equal(t, "Invalid credentials", snap.Error)
	assert.False(t, snap.Loading)

	h.state.ClearError()
	assert.Empty(t, h.state.Snapshot().Error)
}

func TestSessionState_Hydrate(t *testing.T) {
	tests := []struct {
		name      string
		role      string
		advance   time.Duration
		noRefresh bool
		want      bool
		kept      bool
		first     string
	}{
		{name: "admin placeholder", role: "admin", want: true, kept: true, first: "Admin"},
		{name: "customer placeholder", role: "customer", want: true, kept: true, first: "User"},
		{name: "inside buffer keeps a renewable session", role: "admin", advance: 56 * time.Minute, kept: true},
		{name: "inside buffer without refresh token", role: "admin", advance: 56 * time.Minute, noRefresh: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			pair := h.pair(t, tt.role)
			if tt.noRefresh {
				pair.RefreshToken = ""
			}
			require.NoError(t, h.store.Store(ctx, pair))
			h.clock.Advance(tt.advance)

			assert.Equal(t, tt.want, h.state.Hydrate(ctx))
			snap := h.state.Snapshot()
			assert.Equal(t, tt.want, snap.Authenticated)
			_, ok := h.store.Access(ctx)
			assert.Equal(t, tt.kept, ok)
			if !tt.want {
				assert.Nil(t, snap.User)
				return
			}
			assert.Equal(t, tt.first, snap.User.FirstName)
			assert.Equal(t, "7", snap.User.ID)
			assert.True(t, snap.User.Verified)
		})
	}
}

func TestSessionState_HydrateClearsUnreadableToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	store := &stubStore{access: "not-a-jwt", refresh: "r"}
	state := NewSessionState(store, h.codec, logger.NewNopLogger())

	assert.False(t, state.Hydrate(ctx))
	assert.Equal(t, 1, store.clears)
}

func TestSessionState_LogoutDuringLoginWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	store := &stubStore{}
	state := NewSessionState(store, h.codec, logger.NewNopLogger())
	store.onStore = func() { require.NoError(t, state.Logout(ctx)) }

	require.NoError(t, state.BeginAuth())
	err := state.AuthSucceeded(ctx, entity.User{ID: "7"}, h.pair(t, "customer"))
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeInvalidTransition, apperr.CodeOf(err))
	assert.Equal(t, entity.AnonymousSession(), state.Snapshot())
}

func TestSessionState_HydrateWithEmptyStore(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.state.Hydrate(context.Background()))
}

func TestSessionState_UpdateUserAndSubscribe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Store(ctx, h.pair(t, "customer")))

	var seen []entity.Session
	unsubscribe := h.state.Subscribe(func(s entity.Session) { seen = append(seen, s) })

	require.True(t, h.state.Hydrate(ctx))
	h.state.UpdateUser(entity.UserPatch{FirstName: "Grace"})
	unsubscribe()
	h.state.UpdateUser(entity.UserPatch{LastName: "Hopper"})

	require.Len(t, seen, 2)
	assert.Equal(t, "Grace", seen[1].User.FirstName)
	assert.Equal(t, "Name", seen[1].User.LastName)
	assert.Equal(t, "Hopper", h.state.Snapshot().User.LastName)
}

func TestSessionState_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Store(ctx, h.pair(t, "customer")))
	require.True(t, h.state.Hydrate(ctx))

	snap := h.state.Snapshot()
	snap.User.FirstName = "Mallory"
	assert.Equal(t, "User", h.state.Snapshot().User.FirstName)
}
