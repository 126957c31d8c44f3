package tokenstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// issue signs a pair whose access token lives for accessTTL and refresh
// token for a day, relative to clk.
func issue(t *testing.T, clk clock.Clock, accessTTL time.Duration) valueobject.TokenPair {
	t.Helper()
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		Secret:     "test-secret",
		AccessTTL:  accessTTL,
		RefreshTTL: 24 * time.Hour,
	}, clk)
	require.NoError(t, err)

	pair, err := signer.IssuePair("1", "admin@hiprotech.com", "admin")
	require.NoError(t, err)
	return *pair
}
