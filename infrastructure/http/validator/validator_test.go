package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperr "github.com/hiprotech/portal/domain/error"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"admin@hiprotech.com", true},
		{"john.doe+test@example.co.id", true},
		{"", false},
		{"not-an-email", false},
		{"Admin <admin@hiprotech.com>", false},
		{"admin@localhost", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.email))
		})
	}
}

func TestRegistration(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		want     apperr.ErrorCode
	}{
		{"valid", "john.doe@example.com", "password123", "password123", ""},
		{"no confirm field", "john.doe@example.com", "password123", "", ""},
		{"missing email", "", "password123", "", apperr.ErrCodeInvalidRequest},
		{"bad email", "john", "password123", "", apperr.ErrCodeInvalidEmail},
		{"short password", "john.doe@example.com", "pass", "pass", apperr.ErrCodeInvalidPassword},
		{"mismatch", "john.doe@example.com", "password123", "password124", apperr.ErrCodeInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Registration(tt.email, tt.password, tt.confirm, "John", "Doe")
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, apperr.CodeOf(err))
		})
	}
}
