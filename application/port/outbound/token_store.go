package outbound

import (
	"context"
	"errors"

	"github.com/hiprotech/portal/domain/valueobject"
)

// Storage keys shared by every token store implementation. Cookie names,
// file entries and Redis key suffixes all use them.
const (
	KeyPrefix          = "hiprotech_"
	KeyAccessToken     = KeyPrefix + "access_token"
	KeyRefreshToken    = KeyPrefix + "refresh_token"
	KeyUserPreferences = KeyPrefix + "user_prefs"
)

var ErrWatchUnsupported = errors.New("token store does not support change notifications")

// TokenStore holds the access/refresh pair on the client. Store and Clear
// are the only mutators; nothing else writes tokens.
//
// Store persists each token only if its exp claim decodes, and the stored
// entry lives until that exp. A token that cannot be decoded is skipped
// without error; the returned error reports storage failures only.
type TokenStore interface {
	Store(ctx context.Context, tokens valueobject.TokenPair) error
	Access(ctx context.Context) (string, bool)
	Refresh(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error

	Preferences(ctx context.Context) (string, bool)
	SavePreferences(ctx context.Context, prefs string) error
}

// StoreEvent reports a change to one storage key.
type StoreEvent struct {
	Key     string
	Removed bool
}

// StoreWatcher is implemented by stores that can broadcast changes made by
// other sessions sharing the same storage (other tabs, other processes).
// The channel is closed when ctx is done.
type StoreWatcher interface {
	Watch(ctx context.Context) (<-chan StoreEvent, error)
}
