package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const (
	eventStored  = "stored"
	eventRemoved = "removed"
)

// RedisStore shares one session between every client pointed at the same
// namespace. Token keys expire in Redis at the token's exp; changes are
// published on "<namespace>:events" as "stored:<key>" or "removed:<key>".
type RedisStore struct {
	client    *redis.Client
	namespace string
	decoder   outbound.TokenDecoder
	logger    logger.Logger
}

// NewRedisStoreFromURL parses url and pings the server before returning.
func NewRedisStoreFromURL(ctx context.Context, url, namespace string, decoder outbound.TokenDecoder, log logger.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, namespace, decoder, log), nil
}

func NewRedisStore(client *redis.Client, namespace string, decoder outbound.TokenDecoder, log logger.Logger) *RedisStore {
	if namespace == "" {
		namespace = "portal"
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		decoder:   decoder,
		logger:    log,
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Store(ctx context.Context, tokens valueobject.TokenPair) error {
	now := s.decoder.Now()
	pipe := s.client.TxPipeline()
	var stored []string

	for _, kv := range pairEntries(tokens) {
		exp, ok := s.decoder.Expiry(kv.value)
		if !ok {
			s.logger.Debug(ctx, "Skipping token without decodable expiry", map[string]interface{}{"key": kv.key})
			continue
		}
		ttl := exp.Sub(now)
		if ttl <= 0 {
			s.logger.Debug(ctx, "Skipping token that has already expired", map[string]interface{}{"key": kv.key})
			continue
		}
		pipe.Set(ctx, s.key(kv.key), kv.value, ttl)
		pipe.Publish(ctx, s.channel(), eventStored+":"+kv.key)
		stored = append(stored, kv.key)
	}
	if len(stored) == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Access(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyAccessToken)
}

func (s *RedisStore) Refresh(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyRefreshToken)
}

func (s *RedisStore) Preferences(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyUserPreferences)
}

func (s *RedisStore) SavePreferences(ctx context.Context, prefs string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(outbound.KeyUserPreferences), prefs, 0)
	pipe.Publish(ctx, s.channel(), eventStored+":"+outbound.KeyUserPreferences)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	for _, key := range sessionKeys {
		n, err := s.client.Del(ctx, s.key(key)).Result()
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
		if n == 0 {
			continue
		}
		if err := s.client.Publish(ctx, s.channel(), eventRemoved+":"+key).Err(); err != nil {
			s.logger.Warn(ctx, "Failed to publish token removal", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return nil
}

func (s *RedisStore) Watch(ctx context.Context) (<-chan outbound.StoreEvent, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	out := make(chan outbound.StoreEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, ok := parseEvent(msg.Payload)
				if !ok {
					s.logger.Debug(ctx, "Ignoring malformed store event", map[string]interface{}{"payload": msg.Payload})
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		s.logger.Warn(ctx, "Failed to read token from Redis", map[string]interface{}{"key": key, "error": err.Error()})
		return "", false
	}
	return val, true
}

func (s *RedisStore) key(name string) string {
	return s.namespace + ":" + name
}

func (s *RedisStore) channel() string {
	return s.namespace + ":events"
}

func parseEvent(payload string) (outbound.StoreEvent, bool) {
	kind, key, ok := strings.Cut(payload, ":")
	if !ok || key == "" {
		return outbound.StoreEvent{}, false
	}
	switch kind {
	case eventStored:
		return outbound.StoreEvent{Key: key}, true
	case eventRemoved:
		return outbound.StoreEvent{Key: key, Removed: true}, true
	}
	return outbound.StoreEvent{}, false
}
