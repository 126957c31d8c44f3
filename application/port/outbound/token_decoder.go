package outbound

import (
	"time"

	"github.com/hiprotech/portal/domain/valueobject"
)

// TokenDecoder reads bearer token claims without verifying signatures.
// Implemented by infrastructure/service/jwt.Codec.
type TokenDecoder interface {
	Decode(token string) (*valueobject.Claims, bool)
	Expiry(token string) (time.Time, bool)
	IsExpired(token string) bool
	IsExpiredWithin(token string, buffer time.Duration) bool
	Now() time.Time
}
