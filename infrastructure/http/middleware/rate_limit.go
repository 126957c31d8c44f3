package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hiprotech/portal/application/port/inbound"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

type RateLimitConfig struct {
	Attempts      int
	Window        time.Duration
	BlockDuration time.Duration
}

// RateLimitMiddleware throttles credential form submissions per client IP.
// Failed attempts are counted by the form handler through
// RecordFailure; this middleware only enforces the limit.
type RateLimitMiddleware struct {
	rateLimitService inbound.RateLimitService
	config           RateLimitConfig
	logger           logger.Logger
}

func NewRateLimitMiddleware(rateLimitService inbound.RateLimitService, config RateLimitConfig, logger logger.Logger) *RateLimitMiddleware {
	if config.Attempts <= 0 {
		config.Attempts = 10
	}
	if config.Window <= 0 {
		config.Window = 15 * time.Minute
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = 30 * time.Minute
	}
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		config:           config,
		logger:           logger,
	}
}

func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := getClientIP(r)
		key := m.key(r)

		isBlocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			// fail open
		}

		if isBlocked {
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_blocked", "MEDIUM", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})
			m.reject(w)
			return
		}

		allowed, err := m.rateLimitService.CheckLimit(ctx, key, m.config.Attempts, m.config.Window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			allowed = true
		}

		if !allowed {
			if err := m.rateLimitService.Block(ctx, key, m.config.BlockDuration, "Rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "Failed to block IP", err, map[string]interface{}{
					"ip":  clientIP,
					"key": key,
				})
			}

			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_exceeded", "HIGH", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})
			m.reject(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecordFailure counts a rejected credential submission from r's client.
func (m *RateLimitMiddleware) RecordFailure(r *http.Request) {
	if m.rateLimitService == nil {
		return
	}
	if err := m.rateLimitService.Increment(r.Context(), m.key(r), m.config.Window); err != nil {
		m.logger.Error(r.Context(), "Failed to record failed attempt", err, map[string]interface{}{"key": m.key(r)})
	}
}

func (m *RateLimitMiddleware) key(r *http.Request) string {
	action := "login"
	if strings.Contains(r.URL.Path, "/register") {
		action = "register"
	}
	return fmt.Sprintf("%s:ip:%s", action, getClientIP(r))
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.config.BlockDuration.Seconds())))
	http.Error(w, "Too many attempts. Please try again later.", http.StatusTooManyRequests)
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
