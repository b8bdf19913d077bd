package handlers

import (
	"context"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/models"
	"github.com/isharee/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// SessionManager authenticates users and manages their device sessions.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (models.User, models.SessionTokens, error)
	LogoutDevice(ctx context.Context, presented string, user models.User) error
}

// TokenIssuer mints and verifies the single-purpose tokens embedded in
// verification and password-reset links.
type TokenIssuer interface {
	IssueLinkToken(userID string) (string, error)
	Verify(token string) (auth.Identity, error)
}

// VideoStore captures persistence for video browsing and editing.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByGrade(ctx context.Context, grade int64) ([]models.Video, error)
	Search(ctx context.Context, query string) ([]models.Video, error)
	ListLovedBy(ctx context.Context, userID string) ([]models.Video, error)
	Loved(ctx context.Context, userID, videoID string) (bool, error)
	Update(ctx context.Context, video models.Video) error
}

// AtomicMutator runs the multi-row mutations that must commit or fail as one
// unit.
type AtomicMutator interface {
	ToggleLove(ctx context.Context, userID, videoID string) (repositories.LoveStatus, error)
	DeleteAccount(ctx context.Context, userID string) error
	DeleteVideo(ctx context.Context, videoID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
}

// MediaStore deletes stored media assets by opaque public id.
type MediaStore interface {
	Delete(ctx context.Context, publicID string) error
}

// EmailSender delivers transactional email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}
