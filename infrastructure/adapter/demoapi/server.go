// Package demoapi is an in-process stand-in for the backend auth API. It
// serves the same contract with a seeded admin account so the portal can
// run and be tested without a real backend.
package demoapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hiprotech/portal/domain/entity"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/http/response"
	"github.com/hiprotech/portal/infrastructure/http/validator"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
	"github.com/hiprotech/portal/infrastructure/service/password"
)

const (
	SeedAdminEmail    = "admin@hiprotech.com"
	SeedAdminPassword = "password123"
)

var errEmailTaken = errors.New("email already registered")

type account struct {
	user entity.User
	hash string
}

// Server keeps accounts and live refresh tokens in memory. Refresh tokens
// rotate: each one can be exchanged once.
type Server struct {
	signer    *jwt.Signer
	passwords *password.BcryptPasswordService
	logger    logger.Logger

	mu       sync.RWMutex
	accounts map[string]*account // by lower-cased email
	refresh  map[string]string   // refresh jti -> user id
}

func New(signer *jwt.Signer, passwords *password.BcryptPasswordService, log logger.Logger) (*Server, error) {
	s := &Server{
		signer:    signer,
		passwords: passwords,
		logger:    log,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]string),
	}

	admin := entity.User{
		ID:        "1",
		Email:     SeedAdminEmail,
		FirstName: "Admin",
		LastName:  "User",
		Role:      entity.RoleAdmin,
		Verified:  true,
	}
	if err := s.addAccount(admin, SeedAdminPassword); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler serves the auth and catalogue routes relative to the API base
// URL.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", s.login).Methods(http.MethodPost)
	auth.HandleFunc("/register", s.register).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.refreshTokens).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	auth.HandleFunc("/profile", s.profile).Methods(http.MethodGet)
	auth.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/orders", s.listOrders).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found")
	})
	return r
}

// AddUser registers an extra account; tests use it to create non-admin
// users.
func (s *Server) AddUser(user entity.User, plain string) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return s.addAccount(user, plain)
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type authData struct {
	User   entity.User           `json:"user"`
	Tokens valueobject.TokenPair `json:"tokens"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	acct, ok := s.lookup(body.Email)
	if !ok || body.Password == "" {
		s.passwords.Burn(body.Password)
		s.logger.Debug(r.Context(), "Demo login rejected", map[string]interface{}{"email": body.Email})
		response.Unauthorized(w, "Invalid credentials")
		return
	}
	if match, err := s.passwords.VerifyPassword(body.Password, acct.hash); err != nil || !match {
		response.Unauthorized(w, "Invalid credentials")
		return
	}

	tokens, err := s.issue(acct.user)
	if err != nil {
		s.logger.Error(r.Context(), "Failed to issue demo tokens", err, nil)
		response.InternalServerError(w, "Failed to issue tokens")
		return
	}
	response.Success(w, http.StatusOK, "Login successful", authData{User: acct.user, Tokens: *tokens})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := validator.Registration(body.Email, body.Password, "", body.FirstName, body.LastName); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	user := entity.User{
		ID:        uuid.NewString(),
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Role:      entity.RoleCustomer,
	}
	if err := s.addAccount(user, body.Password); err != nil {
		if errors.Is(err, errEmailTaken) {
			response.Conflict(w, "Email already registered")
			return
		}
		s.logger.Error(r.Context(), "Failed to create demo account", err, nil)
		response.InternalServerError(w, "Registration failed")
		return
	}

	tokens, err := s.issue(user)
	if err != nil {
		response.InternalServerError(w, "Failed to issue tokens")
		return
	}
	response.Success(w, http.StatusCreated, "Registration successful", authData{User: user, Tokens: *tokens})
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		response.BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := s.signer.Verify(body.RefreshToken, jwt.TypeRefresh)
	if err != nil {
		response.Unauthorized(w, "Invalid refresh token")
		return
	}

	s.mu.Lock()
	userID, live := s.refresh[claims.ID]
	delete(s.refresh, claims.ID)
	acct := s.accountByIDLocked(userID)
	var user entity.User
	if acct != nil {
		user = acct.user
	}
	s.mu.Unlock()

	if !live || acct == nil {
		logger.LogSecurityEvent(r.Context(), s.logger, "refresh_token_reuse", "high", map[string]interface{}{"user_id": claims.UserID})
		response.Unauthorized(w, "Invalid refresh token")
		return
	}

	tokens, err := s.issue(user)
	if err != nil {
		response.InternalServerError(w, "Failed to issue tokens")
		return
	}
	response.Success(w, http.StatusOK, "Token refreshed", tokens)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := s.bearer(r); err == nil {
		s.mu.Lock()
		for jti, uid := range s.refresh {
			if uid == claims.UserID {
				delete(s.refresh, jti)
			}
		}
		s.mu.Unlock()
	}
	response.Success(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	acct := s.accountByIDLocked(userID)
	var user entity.User
	if acct != nil {
		user = acct.user
	}
	s.mu.RUnlock()
	if acct == nil {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	response.Success(w, http.StatusOK, "Profile retrieved", user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var patch entity.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if patch.Email != "" && !validator.ValidateEmail(patch.Email) {
		response.BadRequest(w, "Invalid email format")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accountByIDLocked(userID)
	if acct == nil {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	if patch.Email != "" && !strings.EqualFold(patch.Email, acct.user.Email) {
		if _, taken := s.accounts[strings.ToLower(patch.Email)]; taken {
			response.Conflict(w, "Email already registered")
			return
		}
		delete(s.accounts, strings.ToLower(acct.user.Email))
		s.accounts[strings.ToLower(patch.Email)] = acct
	}
	acct.user.Apply(patch)
	response.Success(w, http.StatusOK, "Profile updated", acct.user)
}

// authorize verifies the bearer access token and returns its subject.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, err := s.bearer(r)
	if err != nil {
		response.Unauthorized(w, "Unauthorized")
		return "", false
	}
	return claims.UserID, true
}

// lookup returns a copy of the account registered under email.
func (s *Server) lookup(email string) (account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return account{}, false
	}
	return *acct, true
}

func (s *Server) bearer(r *http.Request) (*jwt.IssuedClaims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, jwt.ErrInvalidToken
	}
	return s.signer.Verify(token, jwt.TypeAccess)
}

func (s *Server) issue(user entity.User) (*valueobject.TokenPair, error) {
	tokens, err := s.signer.IssuePair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	claims, err := s.signer.Verify(tokens.RefreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.refresh[claims.ID] = user.ID
	s.mu.Unlock()
	return tokens, nil
}

func (s *Server) addAccount(user entity.User, plain string) error {
	hash, err := s.passwords.HashPassword(plain)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := s.accounts[key]; taken {
		return errEmailTaken
	}
	s.accounts[key] = &account{user: user, hash: hash}
	return nil
}

// accountByIDLocked must be called with mu held.
func (s *Server) accountByIDLocked(id string) *account {
	if id == "" {
		return nil
	}
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			return acct
		}
	}
	return nil
}

func validationMessage(err error) string {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) && appErr.Details != "" && appErr.Code == apperr.ErrCodeInvalidPassword {
		return appErr.Details
	}
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
