package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/infrastructure/adapter/demoapi"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/config"
	"github.com/hiprotech/portal/infrastructure/http/gateway"
	"github.com/hiprotech/portal/infrastructure/http/handler"
	"github.com/hiprotech/portal/infrastructure/http/middleware"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
	"github.com/hiprotech/portal/infrastructure/service/password"
	"github.com/hiprotech/portal/infrastructure/service/ratelimit"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "portal-edge",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"version": "1.0.0",
		"env":     cfg.Environment,
		"demo":    cfg.DemoMode,
	})

	clk := clock.Real()
	codec := jwt.NewCodec(clk, cfg.TokenExpiryBuffer)

	// The demo backend is served by this process under /demo-api
	var demoHandler http.Handler
	apiURL := cfg.APIURL
	if cfg.DemoMode {
		signer, err := jwt.NewSigner(jwt.SignerConfig{
			Secret:     cfg.DemoJWTSecret,
			Issuer:     "hiprotech-demo",
			AccessTTL:  cfg.DemoAccessTokenTTL,
			RefreshTTL: cfg.DemoRefreshTokenTTL,
		}, clk)
		if err != nil {
			log.Fatalf("Failed to initialize demo signer: %v", err)
		}
		demo, err := demoapi.New(signer, password.NewBcryptPasswordService(10), structuredLogger)
		if err != nil {
			log.Fatalf("Failed to initialize demo backend: %v", err)
		}
		demoHandler = demo.Handler()
		apiURL = demoBaseURL(cfg)
		structuredLogger.Warn(ctx, "Demo mode enabled, do not use in production", map[string]interface{}{
			"api_url": apiURL,
			"account": demoapi.SeedAdminEmail,
		})
	}

	gw, err := gateway.New(gateway.Config{BaseURL: apiURL, Timeout: cfg.HTTPClientTimeout}, nil, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to initialize API gateway: %v", err)
	}

	// Initialize rate limiting service (Redis-backed or noop based on config)
	rateLimitService, err := ratelimit.NewRateLimitService(ctx, ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		RedisURL:      cfg.RedisURL,
		LoginAttempts: cfg.RateLimitLoginAttempts,
		LoginWindow:   cfg.RateLimitLoginWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, structuredLogger)
	if err != nil {
		// login throttling is best-effort; the portal still serves without it
		structuredLogger.Error(ctx, "Failed to initialize rate limit service", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
	}

	// Initialize middleware
	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if rateLimitService != nil {
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(rateLimitService, middleware.RateLimitConfig{
			Attempts:      cfg.RateLimitLoginAttempts,
			Window:        cfg.RateLimitLoginWindow,
			BlockDuration: cfg.RateLimitBlockDuration,
		}, structuredLogger)
	}
	sessionMiddleware := middleware.NewSessionMiddleware(codec, gw, tokenstore.CookieOptions{Secure: cfg.CookieSecure()}, structuredLogger)

	// Initialize handlers
	pageHandler, err := handler.NewPageHandler(gw, rateLimitMiddleware, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to load page templates: %v", err)
	}
	guardMiddleware := middleware.NewRouteGuardMiddleware(
		usecase.NewRouteGuard(nil, codec),
		http.HandlerFunc(pageHandler.NotFound),
		structuredLogger,
	)

	router := handler.NewRouter(handler.RouterConfig{
		Pages:    pageHandler,
		Proxy:    handler.NewProxyHandler(gw, structuredLogger),
		Sessions: sessionMiddleware,
		Guard:    guardMiddleware,
		DemoAPI:  demoHandler,
		Logger:   structuredLogger,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + cfg.HTTPClientTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		structuredLogger.Info(ctx, "Starting server", map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"api_url": apiURL,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "Server failed to start", err, map[string]interface{}{
				"host": cfg.ServerHost,
				"port": cfg.ServerPort,
			})
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	structuredLogger.Info(ctx, "Shutting down server...", map[string]interface{}{})

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, map[string]interface{}{})
	}
	structuredLogger.Info(ctx, "Server exited", map[string]interface{}{})
}

func demoBaseURL(cfg *config.Config) string {
	host := cfg.ServerHost
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + cfg.ServerPort + "/demo-api"
}
