package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	clock  *clock.FakeClock
	codec  *jwt.Codec
	store  *tokenstore.MemoryStore
	state  *SessionState
	signer *jwt.Signer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.Fake(epoch)
	codec := jwt.NewCodec(clk, jwt.DefaultExpiryBuffer)
	store := tokenstore.NewMemoryStore(codec, logger.NewNopLogger())
	signer, err := jwt.NewSigner(jwt.SignerConfig{Secret: "test", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, clk)
	require.NoError(t, err)

	return &harness{
		clock:  clk,
		codec:  codec,
		store:  store,
		state:  NewSessionState(store, codec, logger.NewNopLogger()),
		signer: signer,
	}
}

func (h *harness) pair(t *testing.T, role string) valueobject.TokenPair {
	t.Helper()
	p, err := h.signer.IssuePair("7", "user@hiprotech.com", role)
	require.NoError(t, err)
	return *p
}

// stubStore holds raw values without expiry checks and lets a test run code
// in the middle of a Store call.
type stubStore struct {
	access, refresh, prefs string
	clears                 int
	onStore                func()
}

func (s *stubStore) Store(ctx context.Context, tokens valueobject.TokenPair) error {
	s.access, s.refresh = tokens.AccessToken, tokens.RefreshToken
	if s.onStore != nil {
		s.onStore()
	}
	return nil
}

func (s *stubStore) Access(ctx context.Context) (string, bool)  { return s.access, s.access != "" }
func (s *stubStore) Refresh(ctx context.Context) (string, bool) { return s.refresh, s.refresh != "" }
func (s *stubStore) Preferences(ctx context.Context) (string, bool) {
	return s.prefs, s.prefs != ""
}

func (s *stubStore) SavePreferences(ctx context.Context, prefs string) error {
	s.prefs = prefs
	return nil
}

func (s *stubStore) Clear(ctx context.Context) error {
	s.clears++
	s.access, s.refresh = "", ""
	return nil
}
