package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const DefaultCheckInterval = 30 * time.Second

// SessionMonitor logs the session out when its access token expires or
// when another session sharing the store removes it. With renewal set, a
// token inside the expiry buffer is refreshed first.
type SessionMonitor struct {
	state    *SessionState
	auth     *AuthUseCase
	store    outbound.TokenStore
	decoder  outbound.TokenDecoder
	clock    clock.Clock
	interval time.Duration
	logger   logger.Logger
}

func NewSessionMonitor(state *SessionState, store outbound.TokenStore, decoder outbound.TokenDecoder, clk clock.Clock, interval time.Duration, log logger.Logger) *SessionMonitor {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &SessionMonitor{
		state:    state,
		store:    store,
		decoder:  decoder,
		clock:    clk,
		interval: interval,
		logger:   log,
	}
}

// WithRenewal lets Check renew an expiring session through auth before
// giving up on it.
func (m *SessionMonitor) WithRenewal(auth *AuthUseCase) *SessionMonitor {
	m.auth = auth
	return m
}

// Check validates the session once and logs out on failure. It returns
// whether the session is still authenticated.
func (m *SessionMonitor) Check(ctx context.Context) bool {
	if !m.state.Snapshot().Authenticated {
		return false
	}

	token, ok := m.store.Access(ctx)
	if ok && !m.decoder.IsExpired(token) {
		return true
	}
	if ok && m.auth != nil && m.auth.Resume(ctx) {
		return true
	}

	fields := map[string]interface{}{"token_present": ok}
	logger.LogAuthEvent(ctx, m.logger, "session_expired", "", false, fields)
	if err := m.state.Logout(ctx); err != nil {
		m.logger.Error(ctx, "Logout after expiry failed", err, nil)
	}
	return false
}

// Run checks immediately, then on every tick and on every removal of a
// session key by another session. It returns when ctx is done.
func (m *SessionMonitor) Run(ctx context.Context) {
	var events <-chan outbound.StoreEvent
	if w, ok := m.store.(outbound.StoreWatcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			m.logger.Warn(ctx, "Store change notifications unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			events = ch
		}
	}

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Removed && strings.HasPrefix(ev.Key, outbound.KeyPrefix) {
				m.logger.Debug(ctx, "Session key removed elsewhere", map[string]interface{}{"key": ev.Key})
				m.Check(ctx)
			}
		}
	}
}
