package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

type recordingMediaStore struct {
	deleted []string
	err     error
}

func (s *recordingMediaStore) Delete(_ context.Context, publicID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, publicID)
	return nil
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice@example.com", "alice")

	dup := user
	dup.ID = uuid.NewString()
	dup.Username = "alice2"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.Username != user.Username {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if _, err := repo.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("find by username: %v", err)
	}

	updated := fetched
	updated.IsVerified = true
	updated.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update user: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if !fetched.IsVerified {
		t.Fatal("expected verified flag to persist")
	}

	missing := updated
	missing.ID = uuid.NewString()
	missing.Email = "missing@example.com"
	missing.Username = "missing"
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresUserRepository_RefreshTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "bob@example.com", "bob")

	now := time.Now().UTC()
	first := models.RefreshTokenRecord{
		ID:        uuid.NewString(),
		TokenHash: "hash-one",
		IssuedAt:  now,
		ExpiresAt: now.Add(auth.RefreshTokenTTL),
	}
	second := models.RefreshTokenRecord{
		ID:        uuid.NewString(),
		TokenHash: "hash-two",
		IssuedAt:  now.Add(time.Second),
		ExpiresAt: now.Add(auth.RefreshTokenTTL),
	}

	if err := repo.AppendRefreshToken(ctx, user.ID, first); err != nil {
		t.Fatalf("append first token: %v", err)
	}
	if err := repo.AppendRefreshToken(ctx, user.ID, second); err != nil {
		t.Fatalf("append second token: %v", err)
	}

	if err := repo.AppendRefreshToken(ctx, uuid.NewString(), first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound appending to unknown user, got %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if len(fetched.RefreshTokens) != 2 {
		t.Fatalf("expected 2 refresh records, got %d", len(fetched.RefreshTokens))
	}
	if fetched.RefreshTokens[0].TokenHash != "hash-one" {
		t.Fatalf("expected records ordered by issue time, got %+v", fetched.RefreshTokens)
	}

	if err := repo.ReplaceRefreshTokens(ctx, user.ID, fetched.RefreshTokens[1:]); err != nil {
		t.Fatalf("replace tokens: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id after replace: %v", err)
	}
	if len(fetched.RefreshTokens) != 1 || fetched.RefreshTokens[0].TokenHash != "hash-two" {
		t.Fatalf("expected only the second record to survive, got %+v", fetched.RefreshTokens)
	}
}

func TestPostgresVideoRepository_BrowseAndSearch(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool)
	fractions := createTestVideo(t, repo, "Introduction to Fractions", []int64{3, 4})
	createTestVideo(t, repo, "The Water Cycle", []int64{2})

	byGrade, err := repo.ListByGrade(ctx, 3)
	if err != nil {
		t.Fatalf("list by grade: %v", err)
	}
	if len(byGrade) != 1 || byGrade[0].ID != fractions.ID {
		t.Fatalf("expected only the fractions video for grade 3, got %+v", byGrade)
	}

	matches, err := repo.Search(ctx, "fraction")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != fractions.ID {
		t.Fatalf("expected case-insensitive substring match, got %+v", matches)
	}

	none, err := repo.Search(ctx, "algebra")
	if err != nil {
		t.Fatalf("search no matches: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func TestPostgresMutator_ToggleLovePair(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	mutator := NewPostgresMutator(testPool, &recordingMediaStore{}, "profile/default")

	user := createTestUser(t, users, "carol@example.com", "carol")
	video := createTestVideo(t, videos, "Counting to Ten", []int64{1})

	status, err := mutator.ToggleLove(ctx, user.ID, video.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !status.Loved || status.LovedCount != 1 {
		t.Fatalf("expected loved with count 1, got %+v", status)
	}

	loved, err := videos.Loved(ctx, user.ID, video.ID)
	if err != nil {
		t.Fatalf("loved lookup: %v", err)
	}
	if !loved {
		t.Fatal("expected love edge to exist after first toggle")
	}

	status, err = mutator.ToggleLove(ctx, user.ID, video.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if status.Loved || status.LovedCount != 0 {
		t.Fatalf("expected toggle pair to restore baseline, got %+v", status)
	}

	loved, err = videos.Loved(ctx, user.ID, video.ID)
	if err != nil {
		t.Fatalf("loved lookup after second toggle: %v", err)
	}
	if loved {
		t.Fatal("expected love edge removed after second toggle")
	}

	if _, err := mutator.ToggleLove(ctx, user.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound toggling unknown video, got %v", err)
	}
}

func TestPostgresMutator_DeleteVideoAbortsOnMediaFailure(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	media := &recordingMediaStore{err: errors.New("object store unavailable")}
	mutator := NewPostgresMutator(testPool, media, "profile/default")

	user := createTestUser(t, users, "dave@example.com", "dave")
	video := createTestVideo(t, videos, "Long Division", []int64{5})

	if _, err := mutator.ToggleLove(ctx, user.ID, video.ID); err != nil {
		t.Fatalf("toggle love: %v", err)
	}

	if err := mutator.DeleteVideo(ctx, video.ID); !errors.Is(err, ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}

	// The failed media delete must leave the row and its edges intact.
	if _, err := videos.FindByID(ctx, video.ID); err != nil {
		t.Fatalf("expected video to survive a failed delete: %v", err)
	}
	loved, err := videos.Loved(ctx, user.ID, video.ID)
	if err != nil {
		t.Fatalf("loved lookup: %v", err)
	}
	if !loved {
		t.Fatal("expected love edge to survive a failed delete")
	}

	media.err = nil
	if err := mutator.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := videos.FindByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected video gone, got %v", err)
	}
	if len(media.deleted) != 1 || media.deleted[0] != video.MediaPublicID {
		t.Fatalf("expected media asset deleted, got %v", media.deleted)
	}
}

func TestPostgresMutator_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	media := &recordingMediaStore{}
	mutator := NewPostgresMutator(testPool, media, "profile/default")

	user := createTestUser(t, users, "erin@example.com", "erin")
	custom := user
	custom.ProfilePictureID = "profile/erin"
	custom.UpdatedAt = time.Now().UTC()
	if err := users.Update(ctx, custom); err != nil {
		t.Fatalf("set custom picture: %v", err)
	}

	video := createTestVideo(t, videos, "Weather Patterns", []int64{4})
	if _, err := mutator.ToggleLove(ctx, user.ID, video.ID); err != nil {
		t.Fatalf("toggle love: %v", err)
	}

	if err := mutator.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := users.FindByID(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
	if len(media.deleted) != 1 || media.deleted[0] != "profile/erin" {
		t.Fatalf("expected custom picture deleted, got %v", media.deleted)
	}

	// The departed user's love must be reflected in the counter.
	remaining, err := videos.FindByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	if remaining.LovedCount != 0 {
		t.Fatalf("expected loved count decremented to 0, got %d", remaining.LovedCount)
	}

	if err := mutator.DeleteAccount(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresMutator_ChangePassword(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	mutator := NewPostgresMutator(testPool, &recordingMediaStore{}, "profile/default")

	user := createTestUser(t, users, "frank@example.com", "frank")

	now := time.Now().UTC()
	record := models.RefreshTokenRecord{
		ID:        uuid.NewString(),
		TokenHash: "session-hash",
		IssuedAt:  now,
		ExpiresAt: now.Add(auth.RefreshTokenTTL),
	}
	if err := users.AppendRefreshToken(ctx, user.ID, record); err != nil {
		t.Fatalf("append refresh token: %v", err)
	}

	if err := mutator.ChangePassword(ctx, user.ID, "wrong", "N3wsafer!"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := mutator.ChangePassword(ctx, user.ID, "Sup3rsafe!", "N3wsafer!"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	fetched, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(fetched.Password), []byte("N3wsafer!")) != nil {
		t.Fatal("expected new password hash to verify")
	}
	if len(fetched.RefreshTokens) != 0 {
		t.Fatalf("expected every session revoked, got %d records", len(fetched.RefreshTokens))
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE video_loves, refresh_tokens, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email, username string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("Sup3rsafe!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             email,
		Password:          string(hashed),
		Role:              models.RoleUser,
		ProfilePictureURL: "https://media.isharee.app/profile/default.jpg",
		ProfilePictureID:  "profile/default",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, repo *PostgresVideoRepository, title string, grades []int64) models.Video {
	t.Helper()

	now := time.Now().UTC()
	video := models.Video{
		ID:            uuid.NewString(),
		Title:         title,
		MediaURL:      "https://media.isharee.local/videos/" + uuid.NewString() + ".mp4",
		MediaPublicID: "videos/" + uuid.NewString(),
		Grades:        grades,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}
