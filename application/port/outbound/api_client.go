package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionEnded is returned by an APIClient when a 401 could not be
// recovered from. The client has already cleared its token store.
var ErrSessionEnded = errors.New("session ended")

// Request describes one backend call relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   interface{}
	Header http.Header

	// SkipReauth disables the refresh-and-retry on 401. Credential
	// endpoints set it so a rejection reaches the caller as-is.
	SkipReauth bool
}

// Response is a fully-read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Envelope is the backend's response wrapper.
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
}

// Envelope decodes the wrapper. A non-JSON body yields an error.
func (r *Response) Envelope() (*Envelope, error) {
	if r == nil {
		return nil, fmt.Errorf("nil response")
	}
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	return &env, nil
}

// DecodeData unmarshals the envelope's data field into v.
func (r *Response) DecodeData(v interface{}) error {
	env, err := r.Envelope()
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Message returns the envelope message, or "" when the body is not an
// envelope.
func (r *Response) Message() string {
	env, err := r.Envelope()
	if err != nil {
		return ""
	}
	return env.Message
}

// APIClient sends requests to the backend.
type APIClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// SessionRenewer exchanges the stored refresh token for a new pair before
// the access token expires.
type SessionRenewer interface {
	Renew(ctx context.Context) error
}
