package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hiprotech/portal/infrastructure/http/middleware"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

// RouterConfig collects what the edge router mounts. DemoAPI is optional.
type RouterConfig struct {
	Pages    *PageHandler
	Proxy    *ProxyHandler
	Sessions *middleware.SessionMiddleware
	Guard    *middleware.RouteGuardMiddleware
	DemoAPI  http.Handler
	Logger   logger.Logger
}

// NewRouter builds the edge handler. Order, outermost first: correlation
// id, request log, route guard, then the per-route session middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	if cfg.DemoAPI != nil {
		r.PathPrefix("/demo-api/").Handler(http.StripPrefix("/demo-api", cfg.DemoAPI))
	}
	cfg.Proxy.RegisterRoutes(r, cfg.Sessions)
	cfg.Pages.RegisterRoutes(r, cfg.Sessions, cfg.Guard)
	r.NotFoundHandler = http.HandlerFunc(cfg.Pages.NotFound)

	var h http.Handler = r
	h = cfg.Guard.Guard(h)
	h = middleware.RequestLogger(cfg.Logger)(h)
	h = middleware.CorrelationIDMiddleware(h)
	return h
}
