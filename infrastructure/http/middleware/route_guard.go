package middleware

import (
	"net/http"

	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

// RouteGuardMiddleware gates navigations before any page handler runs,
// using only the access token cookie.
type RouteGuardMiddleware struct {
	guard    *usecase.RouteGuard
	notFound http.Handler
	logger   logger.Logger
}

func NewRouteGuardMiddleware(guard *usecase.RouteGuard, notFound http.Handler, log logger.Logger) *RouteGuardMiddleware {
	if notFound == nil {
		notFound = http.NotFoundHandler()
	}
	return &RouteGuardMiddleware{guard: guard, notFound: notFound, logger: log}
}

func (m *RouteGuardMiddleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.guard.Routes().Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, _ := tokenstore.AccessCookie(r)
		m.apply(w, r, next, m.guard.Decide(r.URL.Path, token))
	})
}

// RequireSession re-checks a page against the hydrated request session.
// It must run after SessionMiddleware.Attach.
func (m *RouteGuardMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFrom(r.Context())
		if s == nil {
			m.logger.Error(r.Context(), "RequireSession used without a request session", nil, nil)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		m.apply(w, r, next, m.guard.Authorize(r.URL.Path, s.State.Snapshot()))
	})
}

func (m *RouteGuardMiddleware) apply(w http.ResponseWriter, r *http.Request, next http.Handler, d usecase.Decision) {
	switch d.Action {
	case usecase.ActionAllow:
		next.ServeHTTP(w, r)
	case usecase.ActionRedirect:
		fields := map[string]interface{}{"path": r.URL.Path, "location": d.Location, "reason": d.Reason}
		if d.Reason == usecase.ReasonForbiddenRole {
			logger.LogSecurityEvent(r.Context(), m.logger, "route_forbidden", "low", fields)
		} else {
			m.logger.Debug(r.Context(), "Route guard redirect", fields)
		}
		http.Redirect(w, r, d.Location, http.StatusFound)
	default:
		m.notFound.ServeHTTP(w, r)
	}
}
