package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptPasswordService(t *testing.T) {
	service := NewBcryptPasswordService(4)

	t.Run("HashAndVerify", func(t *testing.T) {
		hash, err := service.HashPassword("password123")
		require.NoError(t, err)
		assert.NotEqual(t, "password123", hash)

		ok, err := service.VerifyPassword("password123", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("WrongPasswordIsNotAnError", func(t *testing.T) {
		hash, err := service.HashPassword("password123")
		require.NoError(t, err)

		ok, err := service.VerifyPassword("password124", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyInputs", func(t *testing.T) {
		_, err := service.HashPassword("")
		assert.ErrorIs(t, err, ErrEmptyPassword)

		_, err = service.VerifyPassword("", "$2a$04$abc")
		assert.ErrorIs(t, err, ErrEmptyPassword)

		_, err = service.VerifyPassword("password", "")
		assert.ErrorIs(t, err, ErrEmptyPassword)
	})

	t.Run("CorruptHash", func(t *testing.T) {
		_, err := service.VerifyPassword("password", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})

	t.Run("Burn", func(t *testing.T) {
		assert.NotPanics(t, func() { service.Burn("anything") })
	})
}
