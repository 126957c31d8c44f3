package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/clock"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingSecret = errors.New("signing secret is required")
)

type SignerConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssuedClaims is what Verify hands back to the demo backend.
type IssuedClaims struct {
	UserID string
	Email  string
	Role   string
	Type   string
	ID     string
	Expiry time.Time
}

// Signer issues and verifies HS256 token pairs for the demo backend.
type Signer struct {
	config SignerConfig
	secret []byte
	clock  clock.Clock
}

func NewSigner(cfg SignerConfig, clk clock.Clock) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Signer{
		config: cfg,
		secret: []byte(cfg.Secret),
		clock:  clk,
	}, nil
}

// IssuePair signs a fresh access/refresh pair for the subject.
func (s *Signer) IssuePair(subject, email, role string) (*valueobject.TokenPair, error) {
	access, err := s.sign(subject, email, role, TypeAccess, s.config.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.sign(subject, "", "", TypeRefresh, s.config.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return valueobject.NewTokenPair(access, refresh), nil
}

func (s *Signer) sign(subject, email, role, typ string, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := payload{
		Email: email,
		Role:  role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, expiry and token type.
func (s *Signer) Verify(token, wantType string) (*IssuedClaims, error) {
	var p payload
	parsed, err := jwt.ParseWithClaims(token, &p, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || p.Type != wantType || p.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &IssuedClaims{
		UserID: p.Subject,
		Email:  p.Email,
		Role:   p.Role,
		Type:   p.Type,
		ID:     p.ID,
		Expiry: p.ExpiresAt.Time,
	}, nil
}
