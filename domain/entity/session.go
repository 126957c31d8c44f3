package entity

import "github.com/hiprotech/portal/domain/valueobject"

// Phase is the lifecycle position of a client session.
type Phase string

const (
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
)

// Session is a read-only snapshot of the client session. It is produced by
// the session state container; callers never mutate it in place.
type Session struct {
	Phase         Phase                  `json:"phase"`
	User          *User                  `json:"user,omitempty"`
	Tokens        *valueobject.TokenPair `json:"-"`
	Authenticated bool                   `json:"authenticated"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
}

// AnonymousSession is the empty session every process starts with.
func AnonymousSession() Session {
	return Session{Phase: PhaseAnonymous}
}

// Clone returns a deep copy so snapshots cannot alias the container's state.
func (s Session) Clone() Session {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Tokens != nil {
		t := *s.Tokens
		out.Tokens = &t
	}
	return out
}

// AccessToken returns the session's access token or "".
func (s Session) AccessToken() string {
	if s.Tokens == nil {
		return ""
	}
	return s.Tokens.AccessToken
}
