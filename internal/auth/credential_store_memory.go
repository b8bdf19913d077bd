package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/isharee/backend/internal/models"
)

// ErrUserNotFound indicates the in-memory store holds no such user.
var ErrUserNotFound = errors.New("auth: user not found")

// NewInMemoryCredentialStore returns a CredentialStore backed by an in-memory map.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{users: make(map[string]models.User)}
}

// InMemoryCredentialStore implements CredentialStore for tests and local development.
type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Add stores a user record, replacing any existing record with the same id.
func (s *InMemoryCredentialStore) Add(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// FindByEmail retrieves a user by exact email match.
func (s *InMemoryCredentialStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

// FindByID retrieves a user by id.
func (s *InMemoryCredentialStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// AppendRefreshToken adds a refresh-token record to the user's list.
func (s *InMemoryCredentialStore) AppendRefreshToken(_ context.Context, userID string, record models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.RefreshTokens = append(user.RefreshTokens, record)
	s.users[userID] = user
	return nil
}

// ReplaceRefreshTokens swaps the user's refresh-token list wholesale.
func (s *InMemoryCredentialStore) ReplaceRefreshTokens(_ context.Context, userID string, records []models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.RefreshTokens = records
	s.users[userID] = user
	return nil
}

var _ CredentialStore = (*InMemoryCredentialStore)(nil)
