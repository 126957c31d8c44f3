package inbound

import (
	"context"

	"github.com/hiprotech/portal/domain/entity"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginResponse is the data payload of /auth/login and /auth/register.
type LoginResponse struct {
	User   entity.User `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

// AuthUseCase drives the client side of the session lifecycle.
type AuthUseCase interface {
	Resume(ctx context.Context) bool
	Login(ctx context.Context, req LoginRequest) (*entity.User, error)
	Register(ctx context.Context, req RegisterRequest) (*entity.User, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*entity.User, error)
	UpdateProfile(ctx context.Context, patch entity.UserPatch) (*entity.User, error)
}
