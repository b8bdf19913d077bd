package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/isharee/backend/internal/models"
)

// Token lifetimes. Link tokens are the single-purpose tokens embedded in
// email-verification and password-reset links.
const (
	AccessTokenTTL  = 5 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
	LinkTokenTTL    = time.Hour
)

var (
	// ErrMissingSecret indicates the signing secret is unavailable.
	ErrMissingSecret = errors.New("auth: signing secret is not configured")
	// ErrTokenExpired indicates the token was valid but is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other verification failure: malformed
	// input, wrong signature, tampered payload, unexpected algorithm.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the payload carried by every issued token. Link tokens carry only
// the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the JWTs used as access, refresh, and link
// tokens. The secret is process-wide, loaded once at startup, and never
// mutated.
type TokenCodec struct {
	secret  []byte
	NowFunc func() time.Time
}

// NewTokenCodec constructs a codec signing with the provided secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Issue signs a token carrying the identity's claims that expires ttl from now.
func (c *TokenCodec) Issue(identity Identity, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := c.now()
	claims := Claims{
		Email: identity.Email,
		Role:  string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueLinkToken signs a one-hour single-purpose token carrying only the user id.
func (c *TokenCodec) IssueLinkToken(userID string) (string, error) {
	return c.Issue(Identity{UserID: userID}, LinkTokenTTL)
}

// Verify checks the token's signature and expiry and returns the identity it
// carries. Verification is all-or-nothing: no claim is trusted on failure.
func (c *TokenCodec) Verify(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrTokenInvalid
	}

	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   models.Role(claims.Role),
	}, nil
}

func (c *TokenCodec) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}
