package app

import (
	"context"
	"fmt"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/config"
	"github.com/isharee/backend/internal/db"
	"github.com/isharee/backend/internal/email"
	"github.com/isharee/backend/internal/handlers"
	"github.com/isharee/backend/internal/middleware"
	"github.com/isharee/backend/internal/repositories"
	"github.com/isharee/backend/internal/storage"
)

// buildDependencies wires together the concrete implementations used by the
// HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	codec, err := auth.NewTokenCodec(cfg.JWTSecret)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	media, err := storage.NewS3MediaStore(ctx, cfg.MediaStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure media store: %w", err)
	}

	users := repositories.NewPostgresUserRepository(pool)
	sessions := auth.NewSessionManager(codec, users)

	return handlers.Dependencies{
		Pool:     pool,
		Users:    users,
		Sessions: sessions,
		Tokens:   codec,
		Mutator:  repositories.NewPostgresMutator(pool, media, cfg.DefaultProfilePictureID),
		Videos:   repositories.NewPostgresVideoRepository(pool),
		Media:    media,
		Email:    email.NewSMTPSender(cfg.SMTP),
		Gate: middleware.AuthGate{
			Tokens:       codec,
			Sessions:     sessions,
			CookieSecure: cfg.CookieSecure,
		},

		ClientURL:    cfg.ClientURL,
		SupportEmail: cfg.SupportEmail,

		DefaultPictureURL: cfg.DefaultProfilePictureURL,
		DefaultPictureID:  cfg.DefaultProfilePictureID,

		CookieSecure: cfg.CookieSecure,
	}, nil
}
