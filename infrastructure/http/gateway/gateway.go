// Package gateway sends backend API calls on behalf of a client session.
// It attaches the bearer token and, on a 401, refreshes the token pair
// once and replays the call once.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiprotech/portal/application/port/outbound"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const refreshPath = "/auth/refresh"

// maxBodyBytes bounds how much of a backend response is read into memory.
const maxBodyBytes = 10 << 20

// ErrSessionEnded is returned when a 401 could not be recovered from. The
// store has been cleared and the navigator told to show the login view.
var ErrSessionEnded = outbound.ErrSessionEnded

// RefreshError reports a failed token refresh. Response is the refresh
// call's response when one was received.
type RefreshError struct {
	Response *outbound.Response
	Err      error
}

func (e *RefreshError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("token refresh failed with status %d: %v", e.Response.StatusCode, e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionEnded}
	}
	return []error{ErrSessionEnded, e.Err}
}

// Navigator sends the user to the login view after the session ends.
type Navigator interface {
	ForceLogin(ctx context.Context)
}

type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) ForceLogin(ctx context.Context) { f(ctx) }

type noopNavigator struct{}

func (noopNavigator) ForceLogin(context.Context) {}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

var _ outbound.SessionRenewer = (*Gateway)(nil)

type Gateway struct {
	baseURL   string
	client    *http.Client
	store     outbound.TokenStore
	navigator Navigator
	logger    logger.Logger
}

func New(cfg Config, store outbound.TokenStore, log logger.Logger) (*Gateway, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", cfg.BaseURL, err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Gateway{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		client:    client,
		store:     store,
		navigator: noopNavigator{},
		logger:    log,
	}, nil
}

// WithStore returns a copy bound to store. The edge server binds each
// request's cookie store this way.
func (g *Gateway) WithStore(store outbound.TokenStore) *Gateway {
	c := *g
	c.store = store
	return &c
}

func (g *Gateway) WithNavigator(nav Navigator) *Gateway {
	c := *g
	if nav == nil {
		nav = noopNavigator{}
	}
	c.navigator = nav
	return &c
}

// Do sends req. Statuses other than 401 are returned as-is with a nil
// error. After a 401 at most one refresh and one replay happen; the
// replay's result is returned whatever its status.
func (g *Gateway) Do(ctx context.Context, req *outbound.Request) (*outbound.Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.send(ctx, req, body)
	if err != nil {
		return nil, err
	}
	logger.LogPerformance(ctx, g.logger, "api "+req.Method+" "+req.Path, time.Since(start), map[string]interface{}{"status": resp.StatusCode})

	if resp.StatusCode != http.StatusUnauthorized || req.SkipReauth {
		return resp, nil
	}

	refreshToken, ok := g.store.Refresh(ctx)
	if !ok {
		g.endSession(ctx, "no_refresh_token")
		return resp, fmt.Errorf("%w: %w", ErrSessionEnded, apperr.ErrNoRefreshToken())
	}

	pair, refreshResp, err := g.refresh(ctx, refreshToken)
	if err != nil {
		g.endSession(ctx, "refresh_failed")
		return refreshResp, &RefreshError{Response: refreshResp, Err: err}
	}

	if err := g.store.Store(ctx, *pair); err != nil {
		g.logger.Error(ctx, "Failed to persist refreshed tokens", err, nil)
	}
	g.logger.Debug(ctx, "Access token refreshed, replaying request", map[string]interface{}{"path": req.Path})

	return g.sendWith(ctx, req, body, pair.AccessToken)
}

// Renew refreshes the pair ahead of expiry. A refresh the backend rejects
// ends the session; a transport failure leaves the store as it was.
func (g *Gateway) Renew(ctx context.Context) error {
	refreshToken, ok := g.store.Refresh(ctx)
	if !ok {
		return apperr.ErrNoRefreshToken()
	}

	pair, refreshResp, err := g.refresh(ctx, refreshToken)
	if err != nil {
		if refreshResp == nil {
			return err
		}
		g.endSession(ctx, "renewal_rejected")
		return &RefreshError{Response: refreshResp, Err: err}
	}
	if err := g.store.Store(ctx, *pair); err != nil {
		return apperr.ErrInternalServerError("store tokens", err)
	}
	g.logger.Debug(ctx, "Access token renewed", nil)
	return nil
}

func (g *Gateway) refresh(ctx context.Context, refreshToken string) (*valueobject.TokenPair, *outbound.Response, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, nil, err
	}
	resp, err := g.exchange(ctx, http.MethodPost, g.baseURL+refreshPath, nil, body)
	if err != nil {
		return nil, nil, apperr.ErrRefreshFailed("transport", err)
	}
	if !resp.OK() {
		return nil, resp, apperr.ErrRefreshFailed(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var pair valueobject.TokenPair
	if err := resp.DecodeData(&pair); err != nil {
		return nil, resp, apperr.ErrRefreshFailed("malformed response", err)
	}
	if pair.AccessToken == "" {
		return nil, resp, apperr.ErrRefreshFailed("response carried no access token", nil)
	}
	return &pair, resp, nil
}

func (g *Gateway) endSession(ctx context.Context, reason string) {
	logger.LogSecurityEvent(ctx, g.logger, "session_ended", "medium", map[string]interface{}{"reason": reason})
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Error(ctx, "Failed to clear token store", err, nil)
	}
	g.navigator.ForceLogin(ctx)
}

func (g *Gateway) send(ctx context.Context, req *outbound.Request, body []byte) (*outbound.Response, error) {
	token, _ := g.store.Access(ctx)
	return g.sendWith(ctx, req, body, token)
}

// sendWith sends req with token as the bearer, or without one when token
// is empty.
func (g *Gateway) sendWith(ctx context.Context, req *outbound.Request, body []byte, token string) (*outbound.Response, error) {
	target, err := g.resolve(req)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range req.Header {
		header[k] = append([]string(nil), v...)
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := g.exchange(ctx, method, target, header, body)
	if err != nil {
		return nil, apperr.ErrExternalService("api", 0, err)
	}
	return resp, nil
}

func (g *Gateway) exchange(ctx context.Context, method, target string, header http.Header, body []byte) (*outbound.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		httpReq.Header[k] = v
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if id := logger.CorrelationID(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &outbound.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (g *Gateway) resolve(req *outbound.Request) (string, error) {
	if !strings.HasPrefix(req.Path, "/") {
		return "", apperr.NewAppError(apperr.ErrCodeInvalidRequest, "Invalid request", "path must start with /", nil)
	}
	target := g.baseURL + req.Path
	if len(req.Query) == 0 {
		return target, nil
	}
	q := url.Values{}
	for k, v := range req.Query {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + q.Encode(), nil
}

// encodeBody buffers the request body so the call can be replayed. Raw
// bytes are sent unchanged; anything else is JSON encoded.
func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return data, nil
}
