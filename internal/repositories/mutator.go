package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/db"
	"github.com/isharee/backend/internal/logging"
)

// MediaStore deletes stored media assets by opaque public id.
type MediaStore interface {
	Delete(ctx context.Context, publicID string) error
}

// LoveStatus reports the outcome of a toggle-love operation.
type LoveStatus struct {
	Loved      bool  `json:"loved"`
	LovedCount int64 `json:"lovedCount"`
}

// PostgresMutator runs the multi-row mutations that must commit or fail as a
// unit: toggling loves, deleting accounts and videos, and password changes.
// Each method is one atomic unit; the database serializes concurrent units.
type PostgresMutator struct {
	pool             db.Pool
	media            MediaStore
	defaultPictureID string
}

// NewPostgresMutator constructs a mutator. defaultPictureID identifies the
// platform-default profile picture, which is shared and never deleted.
func NewPostgresMutator(pool db.Pool, media MediaStore, defaultPictureID string) *PostgresMutator {
	if media == nil {
		panic("repositories: media store must not be nil")
	}
	return &PostgresMutator{pool: pool, media: media, defaultPictureID: defaultPictureID}
}

// ToggleLove flips the love edge between a user and a video, keeping the
// denormalized loved_count in step within the same transaction. Calling it
// twice returns to the original state.
func (m *PostgresMutator) ToggleLove(ctx context.Context, userID, videoID string) (LoveStatus, error) {
	ctx, span := logging.StartSpan(ctx, "mutator.toggle_love")

	var status LoveStatus
	err := db.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		var count int64
		row := tx.QueryRow(ctx, `SELECT loved_count FROM videos WHERE id = $1 FOR UPDATE`, videoID)
		if err := row.Scan(&count); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock video: %w", err)
		}

		var loved bool
		row = tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM video_loves WHERE user_id = $1 AND video_id = $2)
        `, userID, videoID)
		if err := row.Scan(&loved); err != nil {
			return fmt.Errorf("select love edge: %w", err)
		}

		if loved {
			if _, err := tx.Exec(ctx, `DELETE FROM video_loves WHERE user_id = $1 AND video_id = $2`, userID, videoID); err != nil {
				return fmt.Errorf("delete love edge: %w", err)
			}
			count--
		} else {
			if _, err := tx.Exec(ctx, `
                INSERT INTO video_loves (user_id, video_id, created_at)
                VALUES ($1, $2, $3)
            `, userID, videoID, time.Now().UTC()); err != nil {
				return fmt.Errorf("insert love edge: %w", err)
			}
			count++
		}

		if _, err := tx.Exec(ctx, `UPDATE videos SET loved_count = $2 WHERE id = $1`, videoID, count); err != nil {
			return fmt.Errorf("update loved count: %w", err)
		}

		status = LoveStatus{Loved: !loved, LovedCount: count}
		return nil
	})
	span.Finish(err)
	if err != nil {
		return LoveStatus{}, err
	}

	return status, nil
}

// DeleteAccount removes the user, their love edges, their refresh tokens, and
// their non-default profile picture in one unit. Media deletion happens
// before commit; if it fails nothing is persisted. The object-store delete is
// idempotent, so a transaction replay re-issuing it is harmless.
func (m *PostgresMutator) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := logging.StartSpan(ctx, "mutator.delete_account")

	err := db.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		var pictureID string
		row := tx.QueryRow(ctx, `SELECT profile_picture_id FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err := row.Scan(&pictureID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if pictureID != "" && pictureID != m.defaultPictureID {
			if err := m.media.Delete(ctx, pictureID); err != nil {
				return fmt.Errorf("%w: delete profile picture %s: %v", ErrDependency, pictureID, err)
			}
		}

		if _, err := tx.Exec(ctx, `
            UPDATE videos
            SET loved_count = loved_count - 1
            WHERE id IN (SELECT video_id FROM video_loves WHERE user_id = $1)
        `, userID); err != nil {
			return fmt.Errorf("decrement loved counts: %w", err)
		}

		// Love edges and refresh tokens cascade with the user row.
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		return nil
	})
	span.Finish(err)
	return err
}

// DeleteVideo removes the video row, every love edge pointing at it, and its
// stored media in one unit; a media-store failure aborts the whole operation
// and leaves every row untouched.
func (m *PostgresMutator) DeleteVideo(ctx context.Context, videoID string) error {
	ctx, span := logging.StartSpan(ctx, "mutator.delete_video")

	err := db.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		var publicID string
		row := tx.QueryRow(ctx, `SELECT media_public_id FROM videos WHERE id = $1 FOR UPDATE`, videoID)
		if err := row.Scan(&publicID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock video: %w", err)
		}

		if err := m.media.Delete(ctx, publicID); err != nil {
			return fmt.Errorf("%w: delete video media %s: %v", ErrDependency, publicID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM video_loves WHERE video_id = $1`, videoID); err != nil {
			return fmt.Errorf("delete love edges: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, videoID); err != nil {
			return fmt.Errorf("delete video: %w", err)
		}

		return nil
	})
	span.Finish(err)
	return err
}

// ChangePassword verifies the current password under a row lock, re-hashes
// the new one, and revokes every refresh token, all in one unit. A mismatch
// aborts before any write.
func (m *PostgresMutator) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx, span := logging.StartSpan(ctx, "mutator.change_password")

	err := db.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		var currentHash string
		row := tx.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err := row.Scan(&currentHash); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(currentPassword)) != nil {
			return auth.ErrInvalidCredentials
		}

		return m.setPassword(ctx, tx, userID, newPassword)
	})
	span.Finish(err)
	return err
}

// ResetPassword sets a new password and revokes every refresh token in one
// unit. Callers must have proven ownership through a reset link token.
func (m *PostgresMutator) ResetPassword(ctx context.Context, userID, newPassword string) error {
	ctx, span := logging.StartSpan(ctx, "mutator.reset_password")

	err := db.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		return m.setPassword(ctx, tx, userID, newPassword)
	})
	span.Finish(err)
	return err
}

func (m *PostgresMutator) setPassword(ctx context.Context, tx pgx.Tx, userID, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, userID, string(hashed), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	return nil
}
