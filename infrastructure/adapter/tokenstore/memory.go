package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

type entry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func (e entry) live(now time.Time) bool {
	return e.Expires.IsZero() || now.Before(e.Expires)
}

// MemoryStore keeps tokens in process memory. Sessions that share one
// MemoryStore behave like browser tabs sharing cookie storage: a Clear in
// one is broadcast to every watcher.
type MemoryStore struct {
	decoder outbound.TokenDecoder
	logger  logger.Logger

	mu       sync.Mutex
	entries  map[string]entry
	watchers map[int]chan outbound.StoreEvent
	nextID   int
}

func NewMemoryStore(decoder outbound.TokenDecoder, log logger.Logger) *MemoryStore {
	return &MemoryStore{
		decoder:  decoder,
		logger:   log,
		entries:  make(map[string]entry),
		watchers: make(map[int]chan outbound.StoreEvent),
	}
}

func (s *MemoryStore) Store(ctx context.Context, tokens valueobject.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kv := range pairEntries(tokens) {
		exp, ok := s.decoder.Expiry(kv.value)
		if !ok {
			s.logger.Debug(ctx, "Skipping token without decodable expiry", map[string]interface{}{"key": kv.key})
			continue
		}
		s.entries[kv.key] = entry{Value: kv.value, Expires: exp}
		s.broadcast(outbound.StoreEvent{Key: kv.key})
	}
	return nil
}

func (s *MemoryStore) Access(ctx context.Context) (string, bool) {
	return s.get(outbound.KeyAccessToken)
}

func (s *MemoryStore) Refresh(ctx context.Context) (string, bool) {
	return s.get(outbound.KeyRefreshToken)
}

func (s *MemoryStore) Preferences(ctx context.Context) (string, bool) {
	return s.get(outbound.KeyUserPreferences)
}

func (s *MemoryStore) SavePreferences(ctx context.Context, prefs string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[outbound.KeyUserPreferences] = entry{Value: prefs}
	s.broadcast(outbound.StoreEvent{Key: outbound.KeyUserPreferences})
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range sessionKeys {
		if _, ok := s.entries[key]; !ok {
			continue
		}
		delete(s.entries, key)
		s.broadcast(outbound.StoreEvent{Key: key, Removed: true})
	}
	return nil
}

// Watch subscribes to changes made through this store by any session.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan outbound.StoreEvent, error) {
	ch := make(chan outbound.StoreEvent, 16)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *MemoryStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if !e.live(s.decoder.Now()) {
		delete(s.entries, key)
		return "", false
	}
	return e.Value, true
}

// broadcast must be called with mu held. Slow watchers lose events; the
// session monitor's periodic check covers the gap.
func (s *MemoryStore) broadcast(ev outbound.StoreEvent) {
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

type keyValue struct {
	key   string
	value string
}

var sessionKeys = []string{
	outbound.KeyAccessToken,
	outbound.KeyRefreshToken,
	outbound.KeyUserPreferences,
}

func pairEntries(tokens valueobject.TokenPair) []keyValue {
	return []keyValue{
		{outbound.KeyAccessToken, tokens.AccessToken},
		{outbound.KeyRefreshToken, tokens.RefreshToken},
	}
}
