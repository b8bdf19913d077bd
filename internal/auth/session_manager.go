package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/isharee/backend/internal/models"
)

var (
	// ErrInvalidCredentials indicates the supplied password does not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailNotVerified indicates the account exists but has not confirmed
	// its email address yet.
	ErrEmailNotVerified = errors.New("auth: email not verified")
	// ErrRefreshTokenInvalid indicates the presented refresh token does not
	// map to a live session for any reason: unknown user, revoked, or the
	// token never matched a stored record.
	ErrRefreshTokenInvalid = errors.New("auth: refresh token invalid")
)

// CredentialStore persists user identities together with their hashed
// refresh-token records.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	AppendRefreshToken(ctx context.Context, userID string, record models.RefreshTokenRecord) error
	ReplaceRefreshTokens(ctx context.Context, userID string, records []models.RefreshTokenRecord) error
}

// SessionManager orchestrates login, token refresh, per-device logout, and
// full revocation on top of a TokenCodec and a CredentialStore.
type SessionManager struct {
	codec   *TokenCodec
	users   CredentialStore
	NowFunc func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(codec *TokenCodec, users CredentialStore) *SessionManager {
	if codec == nil || users == nil {
		panic("auth: token codec and credential store must not be nil")
	}
	return &SessionManager{codec: codec, users: users}
}

// Login authenticates the user and issues a fresh access/refresh token pair.
// A hashed record of the refresh token is appended to the user's session
// list; the hash covers the entire signed token string, not its claims.
func (m *SessionManager) Login(ctx context.Context, email, password string) (models.User, models.SessionTokens, error) {
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return models.User{}, models.SessionTokens{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return models.User{}, models.SessionTokens{}, ErrEmailNotVerified
	}

	tokens, err := m.issue(ctx, user)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}

	return user, tokens, nil
}

// Refresh exchanges a live refresh token for a new five-minute access token.
// The refresh token itself is not rotated on this path.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (string, Identity, error) {
	identity, err := m.codec.Verify(refreshToken)
	if err != nil {
		return "", Identity{}, err
	}

	user, err := m.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return "", Identity{}, ErrRefreshTokenInvalid
	}

	ok, err := m.ValidateRefreshToken(ctx, refreshToken, &user)
	if err != nil {
		return "", Identity{}, err
	}
	if !ok {
		return "", Identity{}, ErrRefreshTokenInvalid
	}

	identity = Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	accessToken, err := m.codec.Issue(identity, AccessTokenTTL)
	if err != nil {
		return "", Identity{}, err
	}

	return accessToken, identity, nil
}

// ValidateRefreshToken reports whether the presented token matches a live
// stored record. Expired records are pruned first and the shrunken list
// persisted, so expiry is authoritative here regardless of pruning cadence.
func (m *SessionManager) ValidateRefreshToken(ctx context.Context, presented string, user *models.User) (bool, error) {
	now := m.now()

	live := user.RefreshTokens[:0:0]
	for _, record := range user.RefreshTokens {
		if now.Before(record.ExpiresAt) {
			live = append(live, record)
		}
	}

	if len(live) < len(user.RefreshTokens) {
		if err := m.users.ReplaceRefreshTokens(ctx, user.ID, live); err != nil {
			return false, fmt.Errorf("prune refresh tokens: %w", err)
		}
		user.RefreshTokens = live
	}

	fingerprint := tokenFingerprint(presented)
	for _, record := range live {
		if bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(fingerprint)) == nil {
			return true, nil
		}
	}
	return false, nil
}

// LogoutDevice removes exactly the stored record(s) matching the presented
// token. Sessions on other devices survive.
func (m *SessionManager) LogoutDevice(ctx context.Context, presented string, user models.User) error {
	fingerprint := tokenFingerprint(presented)

	kept := user.RefreshTokens[:0:0]
	for _, record := range user.RefreshTokens {
		if bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(fingerprint)) != nil {
			kept = append(kept, record)
		}
	}

	return m.users.ReplaceRefreshTokens(ctx, user.ID, kept)
}

// RevokeAll clears the user's entire refresh-token list, ending every device
// session at once.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) error {
	return m.users.ReplaceRefreshTokens(ctx, userID, nil)
}

func (m *SessionManager) issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	identity := Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	now := m.now()

	accessToken, err := m.codec.Issue(identity, AccessTokenTTL)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refreshToken, err := m.codec.Issue(identity, RefreshTokenTTL)
	if err != nil {
		return models.SessionTokens{}, err
	}

	hash, err := HashRefreshToken(refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	record := models.RefreshTokenRecord{
		ID:        uuid.NewString(),
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}
	if err := m.users.AppendRefreshToken(ctx, user.ID, record); err != nil {
		return models.SessionTokens{}, fmt.Errorf("store refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(AccessTokenTTL),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (m *SessionManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}

// HashRefreshToken produces the stored hash for a signed refresh token.
// bcrypt caps its input at 72 bytes, far shorter than a signed JWT, so the
// token is first reduced to a hex SHA-256 fingerprint of the full string.
func HashRefreshToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(tokenFingerprint(token)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash refresh token: %w", err)
	}
	return string(hash), nil
}

func tokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
