package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/http/gateway"
	"github.com/hiprotech/portal/infrastructure/http/middleware"
	"github.com/hiprotech/portal/infrastructure/http/response"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

// AuthRedirectHeader tells browser code where to send the user after the
// proxy ended the session.
const AuthRedirectHeader = "X-Auth-Redirect"

const (
	apiPrefix    = "/api"
	maxProxyBody = 10 << 20
)

// ProxyHandler forwards /api/{path} to the backend through the gateway,
// so browser code never handles tokens.
type ProxyHandler struct {
	gateway *gateway.Gateway
	logger  logger.Logger
}

func NewProxyHandler(gw *gateway.Gateway, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{gateway: gw, logger: log}
}

func (h *ProxyHandler) RegisterRoutes(r *mux.Router, sessions *middleware.SessionMiddleware) {
	r.PathPrefix(apiPrefix + "/").Handler(sessions.Attach(h))
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r.Context())
	if s == nil {
		response.InternalServerError(w, "Internal server error")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	req := &outbound.Request{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, apiPrefix),
		Query:  flattenQuery(r),
		Header: http.Header{},
	}
	if len(body) > 0 {
		req.Body = body
		if ct := r.Header.Get("Content-Type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		}
	}

	nav := gateway.NavigatorFunc(func(context.Context) {
		w.Header().Set(AuthRedirectHeader, valueobject.PathLogin)
	})
	resp, err := h.gateway.WithStore(s.Store).WithNavigator(nav).Do(r.Context(), req)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionEnded) {
			response.Unauthorized(w, "Session expired. Please sign in again.")
			return
		}
		h.logger.Error(r.Context(), "Proxy request failed", err, map[string]interface{}{"path": req.Path})
		response.Error(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug(r.Context(), "Proxy response write failed", map[string]interface{}{"error": err.Error()})
	}
}

// flattenQuery keeps the first value of each query parameter.
func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
