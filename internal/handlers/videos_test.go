package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/models"
	"github.com/isharee/backend/internal/repositories"
)

type fakeVideoStore struct {
	videos map[string]models.Video
	loves  map[string]bool // key: userID + "/" + videoID
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]models.Video), loves: make(map[string]bool)}
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) ListByGrade(_ context.Context, grade int64) ([]models.Video, error) {
	var out []models.Video
	for _, video := range s.videos {
		for _, g := range video.Grades {
			if g == grade {
				out = append(out, video)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeVideoStore) Search(_ context.Context, query string) ([]models.Video, error) {
	var out []models.Video
	for _, video := range s.videos {
		if video.Title == query {
			out = append(out, video)
		}
	}
	return out, nil
}

func (s *fakeVideoStore) ListLovedBy(_ context.Context, userID string) ([]models.Video, error) {
	var out []models.Video
	prefix := userID + "/"
	for key, loved := range s.loves {
		if loved && strings.HasPrefix(key, prefix) {
			out = append(out, s.videos[strings.TrimPrefix(key, prefix)])
		}
	}
	return out, nil
}

func (s *fakeVideoStore) Loved(_ context.Context, userID, videoID string) (bool, error) {
	return s.loves[userID+"/"+videoID], nil
}

func (s *fakeVideoStore) Update(_ context.Context, video models.Video) error {
	if _, ok := s.videos[video.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.videos[video.ID] = video
	return nil
}

func newVideoHandler() (VideoHandler, *fakeVideoStore, *fakeMutator) {
	store := newFakeVideoStore()
	mutator := &fakeMutator{}
	return VideoHandler{Videos: store, Mutator: mutator}, store, mutator
}

func TestVideoHandlerCreate(t *testing.T) {
	handler, store, _ := newVideoHandler()

	req := jsonRequest(t, http.MethodPost, "/api/v1/videos", createVideoRequest{
		Title:         "Fractions",
		MediaURL:      "https://cdn.example.com/fractions.mp4",
		MediaPublicID: "videos/fractions",
		Grades:        []int64{3, 4},
	})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if len(store.videos) != 1 {
		t.Fatalf("expected one stored video, got %d", len(store.videos))
	}
}

func TestVideoHandlerCreateRequiresGrades(t *testing.T) {
	handler, _, _ := newVideoHandler()

	req := jsonRequest(t, http.MethodPost, "/api/v1/videos", createVideoRequest{
		Title:         "Fractions",
		MediaURL:      "https://cdn.example.com/fractions.mp4",
		MediaPublicID: "videos/fractions",
	})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestVideoHandlerCreateRejectsOutOfRangeGrade(t *testing.T) {
	handler, _, _ := newVideoHandler()

	req := jsonRequest(t, http.MethodPost, "/api/v1/videos", createVideoRequest{
		Title:         "Fractions",
		MediaURL:      "https://cdn.example.com/fractions.mp4",
		MediaPublicID: "videos/fractions",
		Grades:        []int64{13},
	})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestVideoHandlerGetAnonymousOmitsLovedState(t *testing.T) {
	handler, store, _ := newVideoHandler()
	store.videos["vid-1"] = models.Video{ID: "vid-1", Title: "Fractions", Grades: []int64{3}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/vid-1", nil)
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, present := payload["isLoved"]; present {
		t.Fatal("anonymous responses must omit the loved state")
	}
}

func TestVideoHandlerGetIncludesLovedStateWhenAuthenticated(t *testing.T) {
	handler, store, _ := newVideoHandler()
	store.videos["vid-1"] = models.Video{ID: "vid-1", Title: "Fractions", Grades: []int64{3}}
	store.loves["user-1/vid-1"] = true

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/vid-1", nil)
	req.SetPathValue("id", "vid-1")
	req = withIdentity(req, auth.Identity{UserID: "user-1"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var payload struct {
		IsLoved *bool `json:"isLoved"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.IsLoved == nil || !*payload.IsLoved {
		t.Fatalf("expected isLoved true, got %v", payload.IsLoved)
	}
}

func TestVideoHandlerByGradeRejectsInvalidGrade(t *testing.T) {
	handler, _, _ := newVideoHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos?grade=13", nil)
	rec := httptest.NewRecorder()

	handler.ByGrade(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestVideoHandlerSearchRequiresQuery(t *testing.T) {
	handler, _, _ := newVideoHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/search", nil)
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestVideoHandlerSearchNoMatches(t *testing.T) {
	handler, _, _ := newVideoHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/search?query=nothing", nil)
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestVideoHandlerToggleLove(t *testing.T) {
	handler, _, mutator := newVideoHandler()
	mutator.status = repositories.LoveStatus{Loved: true, LovedCount: 4}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/videos/vid-1/love", nil)
	req.SetPathValue("id", "vid-1")
	req = withIdentity(req, auth.Identity{UserID: "user-1"})
	rec := httptest.NewRecorder()

	handler.ToggleLove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var payload struct {
		Data repositories.LoveStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Data.Loved || payload.Data.LovedCount != 4 {
		t.Fatalf("expected loved status echoed, got %+v", payload.Data)
	}
}

func TestVideoHandlerToggleLoveUnknownVideo(t *testing.T) {
	handler, _, mutator := newVideoHandler()
	mutator.err = repositories.ErrNotFound

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/videos/vid-9/love", nil)
	req.SetPathValue("id", "vid-9")
	req = withIdentity(req, auth.Identity{UserID: "user-1"})
	rec := httptest.NewRecorder()

	handler.ToggleLove(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestVideoHandlerDeleteMediaFailure(t *testing.T) {
	handler, _, mutator := newVideoHandler()
	mutator.err = repositories.ErrDependency

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/vid-1", nil)
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestVideoHandlerDelete(t *testing.T) {
	handler, _, mutator := newVideoHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/vid-1", nil)
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if len(mutator.deleted) != 1 || mutator.deleted[0] != "vid-1" {
		t.Fatalf("expected video deletion, got %v", mutator.deleted)
	}
}
