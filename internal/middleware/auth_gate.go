package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/logging"
	"github.com/isharee/backend/internal/models"
)

// TokenVerifier checks a signed token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// SessionRefresher exchanges a live refresh token for a new access token.
type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, auth.Identity, error)
}

// AuthGate resolves the caller's identity from the session cookies,
// transparently minting a new access token from the refresh token when the
// access token is absent or expired.
type AuthGate struct {
	Tokens       TokenVerifier
	Sessions     SessionRefresher
	CookieSecure bool
}

// Require wraps protected routes: requests that fail identity resolution are
// rejected with 401 before next runs.
func (g AuthGate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, errKey := g.resolve(w, r)
		if errKey != "" {
			writeGateError(w, errKey)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// Optional wraps public routes with personalization: resolution runs
// identically, but any failure leaves the request anonymous instead of
// rejecting it.
func (g AuthGate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, errKey := g.resolve(w, r)
		if errKey != "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// resolve returns the caller's identity, or a non-empty message key on
// failure. A successful refresh-token resolution sets a fresh access-token
// cookie as a side effect.
func (g AuthGate) resolve(w http.ResponseWriter, r *http.Request) (auth.Identity, string) {
	logger := logging.FromContext(r.Context())

	if cookie, err := r.Cookie(auth.AccessTokenCookie); err == nil && cookie.Value != "" {
		identity, err := g.Tokens.Verify(cookie.Value)
		if err == nil {
			return identity, ""
		}
		if !errors.Is(err, auth.ErrTokenExpired) {
			logger.Warn("access token rejected", "error", err)
			return auth.Identity{}, "default"
		}
		// Expired access tokens fall through to the refresh path.
	}

	cookie, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		return auth.Identity{}, "default"
	}

	accessToken, identity, err := g.Sessions.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			logger.Warn("refresh token expired")
			return auth.Identity{}, "token"
		}
		logger.Warn("refresh token rejected", "error", err)
		return auth.Identity{}, "default"
	}

	auth.SetTokenCookie(w, auth.AccessTokenCookie, accessToken, auth.AccessTokenTTL, g.CookieSecure)
	return identity, ""
}

// RequireRole allows only callers whose resolved identity holds one of the
// listed roles. It must run inside Require.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if ok {
				for _, role := range roles {
					if identity.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Forbidden: You must be an admin to perform this action.",
			})
		})
	}
}

var gateErrorMessages = map[string]string{
	"default": "Unauthorized. Please log in again.",
	"token":   "Token expired. Please log in again.",
}

func writeGateError(w http.ResponseWriter, key string) {
	message, ok := gateErrorMessages[key]
	if !ok {
		message = gateErrorMessages["default"]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
