package tokenstore

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/valueobject"
)

// CookieOptions controls attributes shared by every session cookie.
type CookieOptions struct {
	Secure bool
	Path   string
}

// CookieStore is bound to a single request/response exchange. Reads come
// from the request cookies, overlaid by anything written earlier in the
// same exchange.
type CookieStore struct {
	w       http.ResponseWriter
	r       *http.Request
	decoder outbound.TokenDecoder
	opts    CookieOptions

	mu      sync.Mutex
	pending map[string]*http.Cookie
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, decoder outbound.TokenDecoder, opts CookieOptions) *CookieStore {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &CookieStore{
		w:       w,
		r:       r,
		decoder: decoder,
		opts:    opts,
		pending: make(map[string]*http.Cookie),
	}
}

func (s *CookieStore) Store(ctx context.Context, tokens valueobject.TokenPair) error {
	for _, kv := range pairEntries(tokens) {
		exp, ok := s.decoder.Expiry(kv.value)
		if !ok {
			continue
		}
		s.set(s.cookie(kv.key, kv.value, exp))
	}
	return nil
}

func (s *CookieStore) Access(ctx context.Context) (string, bool) {
	return s.get(outbound.KeyAccessToken)
}

func (s *CookieStore) Refresh(ctx context.Context) (string, bool) {
	return s.get(outbound.KeyRefreshToken)
}

func (s *CookieStore) Preferences(ctx context.Context) (string, bool) {
	raw, ok := s.get(outbound.KeyUserPreferences)
	if !ok {
		return "", false
	}
	prefs, err := url.QueryUnescape(raw)
	if err != nil {
		return "", false
	}
	return prefs, true
}

func (s *CookieStore) SavePreferences(ctx context.Context, prefs string) error {
	s.set(s.cookie(outbound.KeyUserPreferences, url.QueryEscape(prefs), time.Time{}))
	return nil
}

// Clear expires every session cookie the client may hold.
func (s *CookieStore) Clear(ctx context.Context) error {
	for _, key := range sessionKeys {
		c := s.cookie(key, "", time.Unix(0, 0))
		c.MaxAge = -1
		s.set(c)
	}
	return nil
}

func (s *CookieStore) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.Path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *CookieStore) set(c *http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[c.Name] = c
	http.SetCookie(s.w, c)
}

func (s *CookieStore) get(name string) (string, bool) {
	s.mu.Lock()
	pending, ok := s.pending[name]
	s.mu.Unlock()

	if ok {
		if pending.MaxAge < 0 || pending.Value == "" {
			return "", false
		}
		if !pending.Expires.IsZero() && !s.decoder.Now().Before(pending.Expires) {
			return "", false
		}
		return pending.Value, true
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// AccessCookie reads the access token straight from a request, for callers
// that only need to inspect it.
func AccessCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(outbound.KeyAccessToken)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
