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

// PostgresUserRepository provides PostgreSQL-backed persistence for users and
// their refresh-token records.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, password_hash, is_verified, role,
                           profile_picture_url, profile_picture_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, user.ID, user.Username, user.Email, user.Password, user.IsVerified, user.Role,
		user.ProfilePictureURL, user.ProfilePictureID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by exact email match, refresh tokens included.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByID fetches a user by id, refresh tokens included.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByUsername fetches a user by username, refresh tokens included.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *PostgresUserRepository) findBy(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, username, email, password_hash, is_verified, role,
               profile_picture_url, profile_picture_id, created_at, updated_at
        FROM users
        WHERE %s = $1
    `, column), value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.IsVerified,
		&user.Role, &user.ProfilePictureURL, &user.ProfilePictureID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	rows, err := conn.Query(ctx, `
        SELECT id, token_hash, issued_at, expires_at
        FROM refresh_tokens
        WHERE user_id = $1
        ORDER BY issued_at
    `, user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("query refresh tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record models.RefreshTokenRecord
		if err := rows.Scan(&record.ID, &record.TokenHash, &record.IssuedAt, &record.ExpiresAt); err != nil {
			return models.User{}, fmt.Errorf("scan refresh token: %w", err)
		}
		user.RefreshTokens = append(user.RefreshTokens, record)
	}
	if err := rows.Err(); err != nil {
		return models.User{}, fmt.Errorf("iterate refresh tokens: %w", err)
	}

	return user, nil
}

// Update modifies an existing user record. The password hash is written as
// given; re-hashing happens only where the plaintext value changed.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, email = $3, password_hash = $4, is_verified = $5, role = $6,
            profile_picture_url = $7, profile_picture_id = $8, updated_at = $9
        WHERE id = $1
    `, user.ID, user.Username, user.Email, user.Password, user.IsVerified, user.Role,
		user.ProfilePictureURL, user.ProfilePictureID, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendRefreshToken stores a new refresh-token record for the user.
func (r *PostgresUserRepository) AppendRefreshToken(ctx context.Context, userID string, record models.RefreshTokenRecord) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
    `, record.ID, userID, record.TokenHash, record.IssuedAt, record.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// ReplaceRefreshTokens swaps the user's refresh-token list wholesale within
// one transaction. It backs pruning, single-device logout, and revoke-all.
func (r *PostgresUserRepository) ReplaceRefreshTokens(ctx context.Context, userID string, records []models.RefreshTokenRecord) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear refresh tokens: %w", err)
		}
		for _, record := range records {
			if _, err := tx.Exec(ctx, `
                INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at)
                VALUES ($1, $2, $3, $4, $5)
            `, record.ID, userID, record.TokenHash, record.IssuedAt, record.ExpiresAt); err != nil {
				return fmt.Errorf("insert refresh token: %w", err)
			}
		}
		return nil
	})
}
