package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/service/clock"
)

// DefaultExpiryBuffer makes a token count as expired five minutes early so
// the client refreshes before the server starts rejecting it.
const DefaultExpiryBuffer = 5 * time.Minute

// payload is the claim set the backend puts in both access and refresh
// tokens.
type payload struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Codec decodes bearer token payloads without verifying signatures. Trust is
// placed in the issuing server and the transport.
type Codec struct {
	clock  clock.Clock
	buffer time.Duration
	parser *jwt.Parser
}

func NewCodec(clk clock.Clock, buffer time.Duration) *Codec {
	if clk == nil {
		clk = clock.Real()
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Codec{
		clock:  clk,
		buffer: buffer,
		parser: jwt.NewParser(),
	}
}

// Decode returns the token's claims, or false when the token is empty or
// malformed.
func (c *Codec) Decode(token string) (*valueobject.Claims, bool) {
	if token == "" {
		return nil, false
	}

	var p payload
	if _, _, err := c.parser.ParseUnverified(token, &p); err != nil {
		return nil, false
	}

	claims := &valueobject.Claims{
		Subject: p.Subject,
		Email:   p.Email,
		Role:    p.Role,
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	if p.ExpiresAt != nil {
		claims.ExpiresAt = p.ExpiresAt.Time
	}
	return claims, true
}

// Expiry returns the token's exp claim.
func (c *Codec) Expiry(token string) (time.Time, bool) {
	claims, ok := c.Decode(token)
	if !ok || !claims.HasExpiry() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// IsExpired applies the codec's buffer.
func (c *Codec) IsExpired(token string) bool {
	return c.IsExpiredWithin(token, c.buffer)
}

// IsExpiredWithin is true if the token is absent, undecodable, carries no
// exp, or now >= exp - buffer.
func (c *Codec) IsExpiredWithin(token string, buffer time.Duration) bool {
	exp, ok := c.Expiry(token)
	if !ok {
		return true
	}
	return !c.clock.Now().Before(exp.Add(-buffer))
}

// Valid is the inverse of IsExpired.
func (c *Codec) Valid(token string) bool {
	return !c.IsExpired(token)
}

func (c *Codec) Buffer() time.Duration {
	return c.buffer
}

func (c *Codec) Now() time.Time {
	return c.clock.Now()
}
