package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isharee/backend/internal/auth"
	"github.com/isharee/backend/internal/logging"
	"github.com/isharee/backend/internal/models"
	"github.com/isharee/backend/internal/repositories"
)

// VideoHandler implements the video catalog: admin CRUD plus public
// browse, search, and the love toggle.
type VideoHandler struct {
	Videos  VideoStore
	Mutator AtomicMutator
	NowFunc func() time.Time
}

type videoResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	LovedCount int64   `json:"lovedCount"`
	Grades     []int64 `json:"grades"`
}

func toVideoResponse(v models.Video) videoResponse {
	grades := v.Grades
	if grades == nil {
		grades = []int64{}
	}
	return videoResponse{
		ID:         v.ID,
		Title:      v.Title,
		URL:        v.MediaURL,
		LovedCount: v.LovedCount,
		Grades:     grades,
	}
}

func toVideoResponses(videos []models.Video) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, toVideoResponse(v))
	}
	return out
}

type createVideoRequest struct {
	Title         string  `json:"title"`
	MediaURL      string  `json:"mediaUrl"`
	MediaPublicID string  `json:"mediaPublicId"`
	Grades        []int64 `json:"grades"`
}

// Create handles POST /api/v1/videos. Admin only.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.MediaURL == "" || req.MediaPublicID == "" {
		respondError(ctx, w, http.StatusBadRequest, "missingFields")
		return
	}
	if len(req.Grades) == 0 {
		respondError(ctx, w, http.StatusBadRequest, "gradeRequired")
		return
	}
	if !validGrades(req.Grades) {
		respondError(ctx, w, http.StatusBadRequest, "gradeRange")
		return
	}

	now := h.now()
	video := models.Video{
		ID:            uuid.NewString(),
		Title:         req.Title,
		MediaURL:      req.MediaURL,
		MediaPublicID: req.MediaPublicID,
		Grades:        req.Grades,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("create video", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Video successfully created",
		"data":    toVideoResponse(video),
	})
}

// ByGrade handles GET /api/v1/videos?grade=N.
func (h VideoHandler) ByGrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("grade")
	if raw == "" {
		respondError(ctx, w, http.StatusBadRequest, "gradeRequired")
		return
	}
	grade, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || grade < minGrade || grade > maxGrade {
		respondError(ctx, w, http.StatusBadRequest, "gradeRange")
		return
	}

	videos, err := h.Videos.ListByGrade(ctx, grade)
	if err != nil {
		logging.FromContext(ctx).Error("list videos by grade", "error", err, "grade", grade)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Videos retrieved successfully",
		"videos":  toVideoResponses(videos),
	})
}

// Get handles GET /api/v1/videos/{id}. Runs behind the optional gate: an
// authenticated caller additionally learns whether they love the video.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video")
			return
		}
		logging.FromContext(ctx).Error("find video", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	payload := map[string]any{
		"message": "Video retrieved successfully",
		"data":    toVideoResponse(video),
	}

	if identity, ok := auth.IdentityFromContext(ctx); ok {
		loved, err := h.Videos.Loved(ctx, identity.UserID, video.ID)
		if err != nil {
			logging.FromContext(ctx).Error("check loved state", "error", err, "videoId", video.ID)
			respondError(ctx, w, http.StatusInternalServerError, "default")
			return
		}
		payload["isLoved"] = loved
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}

// Update handles PATCH /api/v1/videos/{id}. Admin only. Swapping the media
// asset deletes the old one through the delete-account media path.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, err := h.Videos.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video")
			return
		}
		logger.Error("find video", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalidBody")
		return
	}

	if title := strings.TrimSpace(req.Title); title != "" {
		video.Title = title
	}
	if req.MediaURL != "" && req.MediaPublicID != "" {
		video.MediaURL = req.MediaURL
		video.MediaPublicID = req.MediaPublicID
	}
	if len(req.Grades) > 0 {
		if !validGrades(req.Grades) {
			respondError(ctx, w, http.StatusBadRequest, "gradeRange")
			return
		}
		video.Grades = req.Grades
	}

	video.UpdatedAt = h.now()
	if err := h.Videos.Update(ctx, video); err != nil {
		logger.Error("update video", "error", err, "videoId", video.ID)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Video successfully updated",
		"data":    toVideoResponse(video),
	})
}

// Delete handles DELETE /api/v1/videos/{id}. Admin only. The media asset
// and every love edge go with the row, atomically.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Mutator.DeleteVideo(ctx, r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "video")
		case errors.Is(err, repositories.ErrDependency):
			logging.FromContext(ctx).Error("delete video media", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "media")
		default:
			logging.FromContext(ctx).Error("delete video", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "default")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Video successfully deleted"})
}

// Search handles GET /api/v1/videos/search.
func (h VideoHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(ctx, w, http.StatusBadRequest, "searchQuery")
		return
	}

	videos, err := h.Videos.Search(ctx, query)
	if err != nil {
		logging.FromContext(ctx).Error("search videos", "error", err, "query", query)
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	if len(videos) == 0 {
		respondError(ctx, w, http.StatusNotFound, "matches")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Videos retrieved successfully",
		"videos":  toVideoResponses(videos),
	})
}

// ToggleLove handles PATCH /api/v1/videos/{id}/love.
func (h VideoHandler) ToggleLove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user")
		return
	}

	status, err := h.Mutator.ToggleLove(ctx, identity.UserID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video")
			return
		}
		logging.FromContext(ctx).Error("toggle love", "error", err, "videoId", r.PathValue("id"))
		respondError(ctx, w, http.StatusInternalServerError, "default")
		return
	}

	message := "Video removed from loved videos"
	if status.Loved {
		message = "Video added to loved videos"
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": message,
		"data":    status,
	})
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
