package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/hiprotech/portal/domain/error"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusOK, "Login successful", map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"1"},"message":"Login successful","success":true}`, rec.Body.String())
}

func TestAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"credentials", apperr.ErrInvalidCredentials("Invalid credentials"), http.StatusUnauthorized, "Invalid credentials"},
		{"validation", apperr.ErrMissingField("email"), http.StatusBadRequest, "Missing required field"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			AppError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}
