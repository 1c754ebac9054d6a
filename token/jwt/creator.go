package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Signer signs a set of claims into a compact JWT
type Signer interface {
	Sign(claims jwtlib.MapClaims) (string, error)
}

// Creator mints storefront access tokens
type Creator struct {
	signer  Signer
	expiry  time.Duration
	nowFunc func() time.Time
}

type CreatorOption func(*Creator)

// WithClock overrides NowTimeFunc for a single creator
func WithClock(nowFunc func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.nowFunc = nowFunc
	}
}

// NewCreator creates a new JWT creator
func NewCreator(signer Signer, expiry time.Duration, opts ...CreatorOption) *Creator {
	c := &Creator{
		signer: signer,
		expiry: expiry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccessToken creates an access token for the given user
func (c *Creator) CreateAccessToken(userID, email string) (string, error) {
	now := NowTimeFunc()
	if c.nowFunc != nil {
		now = c.nowFunc()
	}
	claims := jwtlib.MapClaims{
		"sub":   userID,                   // The user the token was issued to
		"email": email,                    // Convenience claim, read by clients to label the session
		"iat":   now.Unix(),               // Issued At: the time at which the token was issued
		"exp":   now.Add(c.expiry).Unix(), // Expiry: when the token will expire
		"jti":   uuid.New().String(),      // Unique token ID for revocation
	}
	return c.signer.Sign(claims)
}

// Expiry returns the lifetime of minted tokens
func (c *Creator) Expiry() time.Duration {
	return c.expiry
}
