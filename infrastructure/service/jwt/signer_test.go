package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/infrastructure/service/clock"
)

func TestSigner(t *testing.T) {
	fake := clock.Fake(epoch)
	signer, err := NewSigner(SignerConfig{
		Secret:     "test-secret",
		Issuer:     "demo",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, fake)
	require.NoError(t, err)

	t.Run("IssuePair", func(t *testing.T) {
		pair, err := signer.IssuePair("user-1", "a@b.co", "vendor")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		codec := NewCodec(fake, 0)
		claims, ok := codec.Decode(pair.AccessToken)
		require.True(t, ok)
		assert.Equal(t, "vendor", claims.Role)
		assert.True(t, claims.ExpiresAt.Equal(epoch.Add(15*time.Minute)))

		refreshExp, ok := codec.Expiry(pair.RefreshToken)
		require.True(t, ok)
		assert.True(t, refreshExp.Equal(epoch.Add(24*time.Hour)))
	})

	t.Run("VerifyAccess", func(t *testing.T) {
		pair, err := signer.IssuePair("user-1", "a@b.co", "admin")
		require.NoError(t, err)

		claims, err := signer.Verify(pair.AccessToken, TypeAccess)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("VerifyWrongType", func(t *testing.T) {
		pair, err := signer.IssuePair("user-1", "a@b.co", "admin")
		require.NoError(t, err)

		_, err = signer.Verify(pair.RefreshToken, TypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("VerifyForeignSignature", func(t *testing.T) {
		other, err := NewSigner(SignerConfig{Secret: "other"}, fake)
		require.NoError(t, err)
		pair, err := other.IssuePair("user-1", "a@b.co", "admin")
		require.NoError(t, err)

		_, err = signer.Verify(pair.AccessToken, TypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("VerifyExpired", func(t *testing.T) {
		pair, err := signer.IssuePair("user-1", "a@b.co", "admin")
		require.NoError(t, err)

		fake.Advance(16 * time.Minute)
		_, err = signer.Verify(pair.AccessToken, TypeAccess)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner(SignerConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
