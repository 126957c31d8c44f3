package valueobject

import "time"

// Claims are the fields decoded from a bearer token payload. They are not
// signature-checked and are fit for display and soft gating only; the
// backend re-validates every authorization decision.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}
