package middleware

import (
	"context"
	"net/http"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/http/gateway"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

type sessionKey struct{}

// RequestSession is the session bound to one HTTP exchange: the browser's
// cookies as a token store and a state container hydrated from them.
type RequestSession struct {
	Store *tokenstore.CookieStore
	State *usecase.SessionState
}

// SessionFrom returns the session attached by SessionMiddleware, or nil.
func SessionFrom(ctx context.Context) *RequestSession {
	s, _ := ctx.Value(sessionKey{}).(*RequestSession)
	return s
}

type SessionMiddleware struct {
	decoder outbound.TokenDecoder
	gateway *gateway.Gateway
	cookies tokenstore.CookieOptions
	logger  logger.Logger
}

// NewSessionMiddleware renews sessions inside the expiry buffer through gw.
// With a nil gw such sessions are left unhydrated.
func NewSessionMiddleware(decoder outbound.TokenDecoder, gw *gateway.Gateway, cookies tokenstore.CookieOptions, log logger.Logger) *SessionMiddleware {
	return &SessionMiddleware{decoder: decoder, gateway: gw, cookies: cookies, logger: log}
}

// Attach hydrates a per-request session from the cookies, renewing the
// token pair first when the access token is about to expire.
func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := tokenstore.NewCookieStore(w, r, m.decoder, m.cookies)
		state := usecase.NewSessionState(store, m.decoder, m.logger)
		if m.gateway != nil {
			usecase.NewAuthUseCase(m.gateway.WithStore(store), state, m.logger).Resume(r.Context())
		} else {
			state.Hydrate(r.Context())
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, &RequestSession{Store: store, State: state})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
