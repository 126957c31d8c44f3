package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hiprotech/portal/application/port/inbound"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

// rateLimitService counts attempts in Redis. Counters and blocks expire on
// their own.
type rateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
}

type RateLimitConfig struct {
	Enabled       bool
	RedisURL      string
	LoginAttempts int
	LoginWindow   time.Duration
	BlockDuration time.Duration
}

// NewRateLimitService connects to Redis, or returns a service that allows
// everything when rate limiting is disabled.
func NewRateLimitService(ctx context.Context, config RateLimitConfig, log logger.Logger) (inbound.RateLimitService, error) {
	if !config.Enabled {
		log.Info(ctx, "Rate limiting disabled", nil)
		return &noopRateLimitService{}, nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info(ctx, "Rate limiting service initialized", map[string]interface{}{
		"login_attempts": config.LoginAttempts,
		"login_window":   config.LoginWindow.String(),
		"block_duration": config.BlockDuration.String(),
	})

	return NewWithClient(redisClient, log), nil
}

func NewWithClient(client *redis.Client, log logger.Logger) inbound.RateLimitService {
	return &rateLimitService{redisClient: client, logger: log}
}

// CheckLimit reports whether key is still under limit.
func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	currentCount, err := s.GetAttempts(ctx, key)
	if err != nil {
		return false, err
	}

	isUnderLimit := currentCount < limit

	s.logger.Debug(ctx, "Rate limit check", map[string]interface{}{
		"key":         key,
		"current":     currentCount,
		"limit":       limit,
		"under_limit": isUnderLimit,
	})

	return isUnderLimit, nil
}

// Increment bumps the counter for key and restarts its window.
func (s *rateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	pipeline := s.redisClient.TxPipeline()
	incrCmd := pipeline.Incr(ctx, key)
	pipeline.Expire(ctx, key, window)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}

	s.logger.Debug(ctx, "Rate limit incremented", map[string]interface{}{
		"key":    key,
		"count":  incrCmd.Val(),
		"window": window.String(),
	})
	return nil
}

func (s *rateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := fmt.Sprintf("blocked:%s", key)

	blockData := map[string]interface{}{
		"reason":         reason,
		"blocked_at":     time.Now().Unix(),
		"duration":       duration.Seconds(),
		"correlation_id": logger.CorrelationID(ctx),
	}

	pipeline := s.redisClient.TxPipeline()
	pipeline.HSet(ctx, blockKey, blockData)
	pipeline.Expire(ctx, blockKey, duration)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.Warn(ctx, "Key blocked due to rate limit exceeded", map[string]interface{}{
		"key":      key,
		"duration": duration.String(),
		"reason":   reason,
	})
	return nil
}

func (s *rateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	blockKey := fmt.Sprintf("blocked:%s", key)

	exists, err := s.redisClient.Exists(ctx, blockKey).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to check block status: %w", err)
	}
	return exists > 0, nil
}

func (s *rateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		s.logger.Error(ctx, "Failed to get attempts count", err, map[string]interface{}{"key": key})
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return count, nil
}

// noopRateLimitService is used when rate limiting is disabled.
type noopRateLimitService struct{}

func (n *noopRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (n *noopRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return nil
}

func (n *noopRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}

func (n *noopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (n *noopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}
