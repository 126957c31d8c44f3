package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

// FileStore persists tokens in a JSON file readable only by the owning
// user. Every read goes back to disk so changes made by other processes
// are seen immediately.
type FileStore struct {
	path    string
	decoder outbound.TokenDecoder
	logger  logger.Logger

	mu sync.Mutex
}

func NewFileStore(path string, decoder outbound.TokenDecoder, log logger.Logger) *FileStore {
	return &FileStore{
		path:    filepath.Clean(path),
		decoder: decoder,
		logger:  log,
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Store(ctx context.Context, tokens valueobject.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(ctx)
	changed := false
	for _, kv := range pairEntries(tokens) {
		exp, ok := s.decoder.Expiry(kv.value)
		if !ok {
			s.logger.Debug(ctx, "Skipping token without decodable expiry", map[string]interface{}{"key": kv.key})
			continue
		}
		entries[kv.key] = entry{Value: kv.value, Expires: exp}
		changed = true
	}
	if !changed {
		return nil
	}
	return s.save(entries)
}

func (s *FileStore) Access(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyAccessToken)
}

func (s *FileStore) Refresh(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyRefreshToken)
}

func (s *FileStore) Preferences(ctx context.Context) (string, bool) {
	return s.get(ctx, outbound.KeyUserPreferences)
}

func (s *FileStore) SavePreferences(ctx context.Context, prefs string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(ctx)
	entries[outbound.KeyUserPreferences] = entry{Value: prefs}
	return s.save(entries)
}

// Clear removes the session keys. The file itself is deleted once empty.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(ctx)
	for _, key := range sessionKeys {
		delete(entries, key)
	}
	if len(entries) > 0 {
		return s.save(entries)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Watch reports per-key changes to the token file made by any process.
func (s *FileStore) Watch(ctx context.Context) (<-chan outbound.StoreEvent, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	snapshot := s.snapshot(ctx)
	out := make(chan outbound.StoreEvent, 16)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				current := s.snapshot(ctx)
				for _, change := range diff(snapshot, current) {
					select {
					case out <- change:
					case <-ctx.Done():
						return
					}
				}
				snapshot = current
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn(ctx, "Token file watcher error", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
	return out, nil
}

func (s *FileStore) get(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(ctx)[key]
	if !ok || !e.live(s.decoder.Now()) {
		return "", false
	}
	return e.Value, true
}

func (s *FileStore) snapshot(ctx context.Context) map[string]entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// load must be called with mu held. A missing or corrupt file reads as
// empty.
func (s *FileStore) load(ctx context.Context) map[string]entry {
	entries := make(map[string]entry)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn(ctx, "Failed to read token file", map[string]interface{}{"path": s.path, "error": err.Error()})
		}
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn(ctx, "Ignoring corrupt token file", map[string]interface{}{"path": s.path, "error": err.Error()})
		return make(map[string]entry)
	}
	return entries
}

// save writes atomically through a temp file in the same directory.
func (s *FileStore) save(entries map[string]entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func diff(before, after map[string]entry) []outbound.StoreEvent {
	var events []outbound.StoreEvent
	for key := range before {
		if _, ok := after[key]; !ok {
			events = append(events, outbound.StoreEvent{Key: key, Removed: true})
		}
	}
	for key, e := range after {
		if prev, ok := before[key]; !ok || prev.Value != e.Value {
			events = append(events, outbound.StoreEvent{Key: key})
		}
	}
	return events
}
