package jwt

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/infrastructure/service/clock"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func forge(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	return token
}

func TestCodec_Decode(t *testing.T) {
	codec := NewCodec(clock.Fake(epoch), DefaultExpiryBuffer)
	token := forge(t, jwt.MapClaims{
		"sub":   "42",
		"email": "admin@hiprotech.com",
		"role":  "admin",
		"iat":   epoch.Unix(),
		"exp":   epoch.Add(time.Hour).Unix(),
	})

	claims, ok := codec.Decode(token)
	require.True(t, ok)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin@hiprotech.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(epoch.Add(time.Hour)))
	assert.True(t, claims.IssuedAt.Equal(epoch))
}

func TestCodec_DecodeMalformed(t *testing.T) {
	codec := NewCodec(clock.Fake(epoch), DefaultExpiryBuffer)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	inputs := []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c",
		"....",
		header + ".!!!.sig",
		header + "." + base64.RawURLEncoding.EncodeToString([]byte(`not json`)) + ".sig",
		header + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"tomorrow"}`)) + ".sig",
		"dummy_refresh_token_that_expires_later",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.NotPanics(t, func() {
				claims, ok := codec.Decode(in)
				assert.False(t, ok)
				assert.Nil(t, claims)
			})
			assert.True(t, codec.IsExpired(in))
		})
	}
}

func TestCodec_IsExpiredBoundary(t *testing.T) {
	fake := clock.Fake(epoch)
	codec := NewCodec(fake, DefaultExpiryBuffer)
	exp := epoch.Add(time.Hour)
	token := forge(t, jwt.MapClaims{"sub": "1", "exp": exp.Unix()})

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before buffer", exp.Add(-time.Hour), false},
		{"one second before buffer", exp.Add(-DefaultExpiryBuffer - time.Second), false},
		{"exactly at exp minus buffer", exp.Add(-DefaultExpiryBuffer), true},
		{"inside buffer", exp.Add(-time.Minute), true},
		{"after exp", exp.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.Set(tt.now)
			assert.Equal(t, tt.want, codec.IsExpired(token))
			assert.Equal(t, !tt.want, codec.Valid(token))
		})
	}
}

func TestCodec_IsExpiredWithoutExp(t *testing.T) {
	codec := NewCodec(clock.Fake(epoch), DefaultExpiryBuffer)
	token := forge(t, jwt.MapClaims{"sub": "1", "role": "admin"})

	_, ok := codec.Decode(token)
	assert.True(t, ok)
	assert.True(t, codec.IsExpired(token))

	_, ok = codec.Expiry(token)
	assert.False(t, ok)
}

func TestCodec_IsExpiredWithin(t *testing.T) {
	codec := NewCodec(clock.Fake(epoch), DefaultExpiryBuffer)
	token := forge(t, jwt.MapClaims{"sub": "1", "exp": epoch.Add(time.Minute).Unix()})

	assert.True(t, codec.IsExpired(token))
	assert.False(t, codec.IsExpiredWithin(token, 0))
}
