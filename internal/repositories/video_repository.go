package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/isharee/backend/internal/db"
	"github.com/isharee/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, title, media_url, media_public_id, loved_count, grade_levels, created_at, updated_at`

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, media_url, media_public_id, loved_count, grade_levels, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, video.ID, video.Title, video.MediaURL, video.MediaPublicID, video.LovedCount, video.Grades, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListByGrade returns videos tagged with the grade level, newest first.
func (r *PostgresVideoRepository) ListByGrade(ctx context.Context, grade int64) ([]models.Video, error) {
	return r.list(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE $1 = ANY(grade_levels)
        ORDER BY created_at DESC
    `, grade)
}

// Search returns videos whose title contains the query, case-insensitively.
func (r *PostgresVideoRepository) Search(ctx context.Context, query string) ([]models.Video, error) {
	return r.list(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE title ILIKE '%' || $1 || '%'
        ORDER BY created_at DESC
    `, query)
}

// ListLovedBy returns the videos a user has loved, newest first.
func (r *PostgresVideoRepository) ListLovedBy(ctx context.Context, userID string) ([]models.Video, error) {
	return r.list(ctx, `
        SELECT v.id, v.title, v.media_url, v.media_public_id, v.loved_count, v.grade_levels, v.created_at, v.updated_at
        FROM videos v
        JOIN video_loves l ON l.video_id = v.id
        WHERE l.user_id = $1
        ORDER BY v.created_at DESC
    `, userID)
}

// Loved reports whether the user currently loves the video.
func (r *PostgresVideoRepository) Loved(ctx context.Context, userID, videoID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var loved bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM video_loves WHERE user_id = $1 AND video_id = $2)
    `, userID, videoID)
	if err := row.Scan(&loved); err != nil {
		return false, fmt.Errorf("select love edge: %w", err)
	}

	return loved, nil
}

// Update modifies an existing video record.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, media_url = $3, media_public_id = $4, grade_levels = $5, updated_at = $6
        WHERE id = $1
    `, video.ID, video.Title, video.MediaURL, video.MediaPublicID, video.Grades, video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresVideoRepository) list(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.Title, &video.MediaURL, &video.MediaPublicID,
		&video.LovedCount, &video.Grades, &video.CreatedAt, &video.UpdatedAt)
	return video, err
}
