package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/hiprotech/portal/application/port/inbound"
	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/entity"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathLogout   = "/auth/logout"
	pathProfile  = "/auth/profile"

	defaultLoginFailure    = "Login failed. Please check your credentials."
	defaultRegisterFailure = "Registration failed. Please try again."
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthUseCase runs the credential flows against the backend and keeps the
// session state in step with their outcome.
type AuthUseCase struct {
	api    outbound.APIClient
	state  *SessionState
	logger logger.Logger
}

var _ inbound.AuthUseCase = (*AuthUseCase)(nil)

func NewAuthUseCase(api outbound.APIClient, state *SessionState, log logger.Logger) *AuthUseCase {
	return &AuthUseCase{api: api, state: state, logger: log}
}

func (uc *AuthUseCase) State() *SessionState {
	return uc.state
}

// Resume restores the stored session. When the access token is inside the
// expiry buffer and the client can renew, the pair is refreshed first. If
// the backend cannot be reached the still-unexpired token is used as is.
func (uc *AuthUseCase) Resume(ctx context.Context) bool {
	if uc.state.Hydrate(ctx) {
		return true
	}
	renewer, ok := uc.api.(outbound.SessionRenewer)
	if !ok {
		return false
	}

	err := renewer.Renew(ctx)
	switch {
	case err == nil:
		return uc.state.Hydrate(ctx)
	case apperr.CodeOf(err) == apperr.ErrCodeNoRefreshToken:
		return false
	case errors.Is(err, outbound.ErrSessionEnded):
		logger.LogAuthEvent(ctx, uc.logger, "session_renewal", "", false, map[string]interface{}{"error": err.Error()})
		return false
	default:
		uc.logger.Warn(ctx, "Session renewal failed", map[string]interface{}{"error": err.Error()})
		return uc.state.hydrate(ctx, func(token string) bool { return uc.state.decoder.IsExpiredWithin(token, 0) })
	}
}

// checkEnded logs the session out locally when the client gave up on it.
func (uc *AuthUseCase) checkEnded(ctx context.Context, err error) error {
	if errors.Is(err, outbound.ErrSessionEnded) {
		if logoutErr := uc.state.Logout(ctx); logoutErr != nil {
			uc.logger.Error(ctx, "Failed to clear ended session", logoutErr, nil)
		}
	}
	return err
}

func (uc *AuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*entity.User, error) {
	if req.Email == "" {
		return nil, apperr.ErrMissingField("email")
	}
	if req.Password == "" {
		return nil, apperr.ErrMissingField("password")
	}
	return uc.authenticate(ctx, pathLogin, req, req.Email, defaultLoginFailure, apperr.ErrInvalidCredentials)
}

func (uc *AuthUseCase) Register(ctx context.Context, req inbound.RegisterRequest) (*entity.User, error) {
	if req.Email == "" {
		return nil, apperr.ErrMissingField("email")
	}
	if req.Password == "" {
		return nil, apperr.ErrMissingField("password")
	}
	return uc.authenticate(ctx, pathRegister, req, req.Email, defaultRegisterFailure, apperr.ErrRegistrationFailed)
}

func (uc *AuthUseCase) authenticate(
	ctx context.Context,
	path string,
	body interface{},
	email string,
	fallback string,
	reject func(string) *apperr.AppError,
) (*entity.User, error) {
	if err := uc.state.BeginAuth(); err != nil {
		return nil, err
	}

	resp, err := uc.api.Do(ctx, &outbound.Request{
		Method:     http.MethodPost,
		Path:       path,
		Body:       body,
		SkipReauth: true,
	})
	if err != nil {
		uc.state.AuthFailed(fallback)
		logger.LogAuthEvent(ctx, uc.logger, path, "", false, map[string]interface{}{"email": email, "error": err.Error()})
		return nil, err
	}

	if !resp.OK() {
		message := resp.Message()
		if message == "" {
			message = fallback
		}
		uc.state.AuthFailed(message)
		logger.LogAuthEvent(ctx, uc.logger, path, "", false, map[string]interface{}{"email": email, "status": resp.StatusCode})
		return nil, reject(message)
	}

	var data inbound.LoginResponse
	if err := resp.DecodeData(&data); err != nil {
		uc.state.AuthFailed(fallback)
		return nil, apperr.ErrExternalService("api", resp.StatusCode, err)
	}

	tokens := valueobject.NewTokenPair(data.Tokens.AccessToken, data.Tokens.RefreshToken)
	if err := uc.state.AuthSucceeded(ctx, data.User, *tokens); err != nil {
		logger.LogAuthEvent(ctx, uc.logger, path, data.User.ID, false, map[string]interface{}{"email": email, "error": err.Error()})
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, path, data.User.ID, true, map[string]interface{}{"email": email, "role": string(data.User.Role)})
	user := data.User
	return &user, nil
}

// Logout tells the backend the session is over and then clears local
// state. The local logout happens even when the backend call fails.
func (uc *AuthUseCase) Logout(ctx context.Context) error {
	snap := uc.state.Snapshot()
	userID := ""
	if snap.User != nil {
		userID = snap.User.ID
	}

	resp, err := uc.api.Do(ctx, &outbound.Request{Method: http.MethodPost, Path: pathLogout, SkipReauth: true})
	switch {
	case err != nil:
		uc.logger.Warn(ctx, "Server logout failed", map[string]interface{}{"error": err.Error()})
	case !resp.OK():
		uc.logger.Warn(ctx, "Server logout rejected", map[string]interface{}{"status": resp.StatusCode})
	}

	if err := uc.state.Logout(ctx); err != nil {
		return apperr.ErrLogoutFailed(err)
	}
	logger.LogAuthEvent(ctx, uc.logger, "logout", userID, true, nil)
	return nil
}

// Profile fetches the full profile and replaces the placeholder user.
func (uc *AuthUseCase) Profile(ctx context.Context) (*entity.User, error) {
	if !uc.state.Snapshot().Authenticated {
		return nil, ErrNotAuthenticated
	}

	resp, err := uc.api.Do(ctx, &outbound.Request{Method: http.MethodGet, Path: pathProfile})
	if err != nil {
		return nil, uc.checkEnded(ctx, err)
	}
	return uc.applyProfile(resp)
}

func (uc *AuthUseCase) UpdateProfile(ctx context.Context, patch entity.UserPatch) (*entity.User, error) {
	if !uc.state.Snapshot().Authenticated {
		return nil, ErrNotAuthenticated
	}

	resp, err := uc.api.Do(ctx, &outbound.Request{Method: http.MethodPut, Path: pathProfile, Body: patch})
	if err != nil {
		return nil, uc.checkEnded(ctx, err)
	}
	user, err := uc.applyProfile(resp)
	if err != nil {
		return nil, err
	}
	uc.state.UpdateUser(patch)
	return user, nil
}

func (uc *AuthUseCase) applyProfile(resp *outbound.Response) (*entity.User, error) {
	if !resp.OK() {
		return nil, apperr.ErrExternalService("api", resp.StatusCode, errors.New(resp.Message()))
	}
	var user entity.User
	if err := resp.DecodeData(&user); err != nil {
		return nil, apperr.ErrExternalService("api", resp.StatusCode, err)
	}
	uc.state.SetProfile(user)
	return &user, nil
}
