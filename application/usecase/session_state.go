package usecase

import (
	"context"
	"sync"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/entity"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const invalidSessionTokenMessage = "received an invalid session token"

// SessionState owns the client session. The session only changes through
// the transition methods below; readers get copies via Snapshot.
//
// Invariant: Authenticated is true iff a non-expired access token is held,
// and User is set iff Authenticated.
type SessionState struct {
	store   outbound.TokenStore
	decoder outbound.TokenDecoder
	logger  logger.Logger

	mu          sync.Mutex
	session     entity.Session
	subscribers map[int]func(entity.Session)
	nextSub     int
}

// NewSessionState starts anonymous. Call Hydrate to pick up a stored
// session.
func NewSessionState(store outbound.TokenStore, decoder outbound.TokenDecoder, log logger.Logger) *SessionState {
	return &SessionState{
		store:       store,
		decoder:     decoder,
		logger:      log,
		session:     entity.AnonymousSession(),
		subscribers: make(map[int]func(entity.Session)),
	}
}

func (s *SessionState) Snapshot() entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Subscribe registers fn to receive every new snapshot. The returned func
// unregisters it.
func (s *SessionState) Subscribe(fn func(entity.Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// BeginAuth marks a login or registration as in flight.
func (s *SessionState) BeginAuth() error {
	s.mu.Lock()
	if s.session.Phase == entity.PhaseAuthenticating {
		s.mu.Unlock()
		return apperr.ErrInvalidTransition(string(entity.PhaseAuthenticating), "BeginAuth")
	}
	next := s.session.Clone()
	next.Phase = entity.PhaseAuthenticating
	next.Loading = true
	next.Error = ""
	s.commit(next)
	return nil
}

// AuthSucceeded completes an in-flight login with the server's answer. The
// tokens are written to the store before the session is marked
// authenticated. An access token that is already expired, or that cannot be
// decoded, fails the login instead.
func (s *SessionState) AuthSucceeded(ctx context.Context, user entity.User, tokens valueobject.TokenPair) error {
	s.mu.Lock()
	if s.session.Phase != entity.PhaseAuthenticating {
		phase := s.session.Phase
		s.mu.Unlock()
		return apperr.ErrInvalidTransition(string(phase), "AuthSucceeded")
	}
	s.mu.Unlock()

	if s.decoder.IsExpired(tokens.AccessToken) {
		s.logger.Warn(ctx, "Rejected expired or malformed access token at login", map[string]interface{}{"user_id": user.ID})
		s.AuthFailed(invalidSessionTokenMessage)
		return apperr.ErrInvalidToken(invalidSessionTokenMessage)
	}

	if err := s.store.Store(ctx, tokens); err != nil {
		s.logger.Error(ctx, "Failed to persist session tokens", err, nil)
		s.AuthFailed("Unable to save your session. Please try again.")
		return apperr.ErrInternalServerError("store tokens", err)
	}

	s.mu.Lock()
	if s.session.Phase != entity.PhaseAuthenticating {
		phase := s.session.Phase
		s.mu.Unlock()
		return apperr.ErrInvalidTransition(string(phase), "AuthSucceeded")
	}
	u := user
	t := tokens
	s.commit(entity.Session{
		Phase:         entity.PhaseAuthenticated,
		User:          &u,
		Tokens:        &t,
		Authenticated: true,
	})
	return nil
}

// AuthFailed ends an in-flight login with a message for the user. Called
// from any other phase it still lands in anonymous with the message set.
func (s *SessionState) AuthFailed(message string) {
	s.mu.Lock()
	s.commit(entity.Session{
		Phase: entity.PhaseAnonymous,
		Error: message,
	})
}

// Logout clears the store and the session. It is safe to call repeatedly.
func (s *SessionState) Logout(ctx context.Context) error {
	err := s.store.Clear(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to clear token store", err, nil)
	}

	s.mu.Lock()
	if s.session.Phase == entity.PhaseAnonymous && s.session.Error == "" && !s.session.Loading {
		s.mu.Unlock()
		return err
	}
	s.commit(entity.AnonymousSession())
	return err
}

// Hydrate rebuilds an authenticated session from the stored access token
// without contacting the backend. Profile fields are placeholders until a
// profile fetch replaces them.
//
// An unreadable access token is cleared. One that is expired, or inside the
// expiry buffer, is kept while a refresh token can still renew it.
func (s *SessionState) Hydrate(ctx context.Context) bool {
	return s.hydrate(ctx, s.decoder.IsExpired)
}

func (s *SessionState) hydrate(ctx context.Context, expired func(string) bool) bool {
	access, ok := s.store.Access(ctx)
	if !ok {
		return false
	}

	claims, decoded := s.decoder.Decode(access)
	if !decoded {
		s.logger.Debug(ctx, "Discarding unreadable stored session", nil)
		s.clearStore(ctx)
		return false
	}

	refresh, renewable := s.store.Refresh(ctx)
	if expired(access) {
		if !renewable {
			s.logger.Debug(ctx, "Discarding expired session without refresh token", nil)
			s.clearStore(ctx)
		}
		return false
	}

	tokens := valueobject.NewTokenPair(access, refresh)

	s.mu.Lock()
	s.commit(entity.Session{
		Phase:         entity.PhaseAuthenticated,
		User:          entity.UserFromClaims(claims),
		Tokens:        tokens,
		Authenticated: true,
	})
	return true
}

func (s *SessionState) clearStore(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error(ctx, "Failed to clear token store", err, nil)
	}
}

// UpdateUser merges patch into the current user. It does nothing unless
// the session is authenticated.
func (s *SessionState) UpdateUser(patch entity.UserPatch) {
	s.mu.Lock()
	if !s.session.Authenticated {
		s.mu.Unlock()
		return
	}
	next := s.session.Clone()
	next.User.Apply(patch)
	s.commit(next)
}

// SetProfile replaces the placeholder user with the backend's profile of
// the same user.
func (s *SessionState) SetProfile(user entity.User) {
	s.mu.Lock()
	if !s.session.Authenticated || s.session.User.ID != user.ID {
		s.mu.Unlock()
		return
	}
	next := s.session.Clone()
	next.User = &user
	s.commit(next)
}

func (s *SessionState) ClearError() {
	s.mu.Lock()
	if s.session.Error == "" {
		s.mu.Unlock()
		return
	}
	next := s.session.Clone()
	next.Error = ""
	s.commit(next)
}

// HasRole reports whether the authenticated user holds any of roles.
func (s *SessionState) HasRole(roles ...entity.Role) bool {
	snap := s.Snapshot()
	return snap.Authenticated && snap.User.HasRole(roles...)
}

func (s *SessionState) IsAdmin() bool {
	return s.HasRole(entity.RoleAdmin)
}

// commit must be called with mu held; it releases mu before notifying
// subscribers.
func (s *SessionState) commit(next entity.Session) {
	s.session = next
	snap := next.Clone()
	subs := make([]func(entity.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}
