package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func issue(t *testing.T, clk clock.Clock, role string) (string, string) {
	t.Helper()
	signer, err := jwt.NewSigner(jwt.SignerConfig{Secret: "s", AccessTTL: time.Hour}, clk)
	require.NoError(t, err)
	pair, err := signer.IssuePair("9", "someone@hiprotech.com", role)
	require.NoError(t, err)
	return pair.AccessToken, pair.RefreshToken
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRouteGuardMiddleware_Guard(t *testing.T) {
	clk := clock.Fake(epoch)
	codec := jwt.NewCodec(clk, jwt.DefaultExpiryBuffer)
	mw := NewRouteGuardMiddleware(usecase.NewRouteGuard(nil, codec), nil, logger.NewNopLogger())
	h := mw.Guard(okHandler())

	customer, _ := issue(t, clk, "customer")

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{"public", "/", "", http.StatusOK, ""},
		{"api is not guarded", "/api/orders", "", http.StatusOK, ""},
		{"static asset", "/favicon.ico", "", http.StatusOK, ""},
		{"protected anonymous", "/dashboard", "", http.StatusFound, "/auth/login?returnUrl=/dashboard"},
		{"protected customer", "/orders/42", customer, http.StatusOK, ""},
		{"admin customer", "/admin", customer, http.StatusFound, "/unauthorized"},
		{"login signed in", "/auth/login", customer, http.StatusFound, "/dashboard"},
		{"unknown", "/wp-admin", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: outbound.KeyAccessToken, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestRouteGuardMiddleware_RequireSession(t *testing.T) {
	clk := clock.Fake(epoch)
	codec := jwt.NewCodec(clk, jwt.DefaultExpiryBuffer)
	guard := NewRouteGuardMiddleware(usecase.NewRouteGuard(nil, codec), nil, logger.NewNopLogger())
	sessions := NewSessionMiddleware(codec, nil, tokenstore.CookieOptions{}, logger.NewNopLogger())

	var seenUser string
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = SessionFrom(r.Context()).State.Snapshot().User.ID
	})
	h := sessions.Attach(guard.RequireSession(page))

	access, refresh := issue(t, clk, "customer")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: outbound.KeyAccessToken, Value: access})
	req.AddCookie(&http.Cookie{Name: outbound.KeyRefreshToken, Value: refresh})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9", seenUser)

	// Inside the expiry buffer the session is not hydrated. Without a way
	// to renew it the cookies stay while a refresh token is held.
	clk.Advance(56 * time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?returnUrl=/profile", rec.Header().Get("Location"))
	assert.False(t, accessCleared(rec))

	// Nothing can renew a session that has no refresh token.
	bare := httptest.NewRequest(http.MethodGet, "/profile", nil)
	bare.AddCookie(&http.Cookie{Name: outbound.KeyAccessToken, Value: access})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bare)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, accessCleared(rec))
}

func accessCleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == outbound.KeyAccessToken && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestRequireSession_WithoutAttach(t *testing.T) {
	codec := jwt.NewCodec(clock.Fake(epoch), 0)
	guard := NewRouteGuardMiddleware(usecase.NewRouteGuard(nil, codec), nil, logger.NewNopLogger())

	rec := httptest.NewRecorder()
	guard.RequireSession(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
