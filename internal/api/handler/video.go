package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/scenedex/internal/api/middleware"
	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
	"github.com/hszk-dev/scenedex/internal/usecase"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Request/Response types

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type InitUploadResponse struct {
	VideoID   string `json:"video_id"`
	UploadURL string `json:"upload_url"`
	ExpiresAt string `json:"expires_at"`
	State     string `json:"state"`
}

type CompleteUploadResponse struct {
	State string `json:"state"`
}

type VideoResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	State       string   `json:"state"`
	MimeType    string   `json:"mime_type"`
	SizeBytes   int64    `json:"size_bytes"`
	DurationS   *float64 `json:"duration_s,omitempty"`
	ErrorText   string   `json:"error_text,omitempty"`
	CreatedAt   string   `json:"created_at"`
	IndexedAt   string   `json:"indexed_at,omitempty"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type SceneResponse struct {
	ID         string         `json:"id"`
	StartS     float64        `json:"start_s"`
	EndS       float64        `json:"end_s"`
	Transcript string         `json:"transcript"`
	VisionTags map[string]any `json:"vision_tags,omitempty"`
	SidecarURL string         `json:"sidecar_url,omitempty"`
}

type SceneListResponse struct {
	VideoID string          `json:"video_id"`
	Scenes  []SceneResponse `json:"scenes"`
}

// VideoHandler handles video-related HTTP requests.
type VideoHandler struct {
	svc usecase.VideoService
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(svc usecase.VideoService) *VideoHandler {
	return &VideoHandler{svc: svc}
}

// InitUpload handles POST /v1/videos/upload/init
func (h *VideoHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	output, err := h.svc.InitUpload(r.Context(), usecase.InitUploadInput{
		UserID:      user.ID,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, InitUploadResponse{
		VideoID:   output.Video.ID.String(),
		UploadURL: output.UploadURL,
		ExpiresAt: output.ExpiresAt.Format(time.RFC3339),
		State:     output.Video.State.String(),
	})
}

// CompleteUpload handles POST /v1/videos/{id}/upload/complete
func (h *VideoHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return
	}

	state, err := h.svc.CompleteUpload(r.Context(), user.ID, videoID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, CompleteUploadResponse{State: state.String()})
}

// List handles GET /v1/videos
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_page", err.Error())
		return
	}

	videos, err := h.svc.ListVideos(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := VideoListResponse{
		Videos: make([]VideoResponse, 0, len(videos)),
		Limit:  limit,
		Offset: offset,
	}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, toVideoResponse(v))
	}
	JSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/videos/{id}
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return
	}

	video, err := h.svc.GetVideo(r.Context(), user.ID, videoID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(video))
}

// Status handles GET /v1/videos/{id}/status
func (h *VideoHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return
	}

	status, err := h.svc.GetStatus(r.Context(), user.ID, videoID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, status)
}

// Scenes handles GET /v1/videos/{id}/scenes
func (h *VideoHandler) Scenes(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthenticated", "Missing identity")
		return
	}

	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return
	}

	views, err := h.svc.ListScenes(r.Context(), user.ID, videoID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := SceneListResponse{
		VideoID: videoID.String(),
		Scenes:  make([]SceneResponse, 0, len(views)),
	}
	for _, view := range views {
		resp.Scenes = append(resp.Scenes, SceneResponse{
			ID:         view.Scene.ID.String(),
			StartS:     view.Scene.StartS,
			EndS:       view.Scene.EndS,
			Transcript: view.Scene.Transcript,
			VisionTags: view.Scene.VisionTags,
			SidecarURL: view.SidecarURL,
		})
	}
	JSON(w, http.StatusOK, resp)
}

func (h *VideoHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
	case errors.Is(err, model.ErrInvalidMimeType):
		Error(w, http.StatusBadRequest, "invalid_mime_type", "Unsupported video MIME type")
	case errors.Is(err, model.ErrInvalidSize):
		Error(w, http.StatusBadRequest, "invalid_size", "Size must be positive and at most 1 GiB")
	case errors.Is(err, model.ErrInvalidFilename):
		Error(w, http.StatusBadRequest, "invalid_filename", "Filename is empty or too long")
	case errors.Is(err, usecase.ErrUploadNotReady):
		Error(w, http.StatusConflict, "upload_not_ready", "Uploaded file has not arrived in storage yet")
	case errors.Is(err, usecase.ErrVideoNotProcessable):
		Error(w, http.StatusConflict, "video_not_processable", "Video is in a terminal state")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, errors.New("limit must be between 1 and 100")
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be non-negative")
		}
	}
	return limit, offset, nil
}

func toVideoResponse(v *model.Video) VideoResponse {
	resp := VideoResponse{
		ID:          v.ID.String(),
		Title:       v.Title,
		Description: v.Description,
		State:       v.State.String(),
		MimeType:    v.MimeType,
		SizeBytes:   v.SizeBytes,
		DurationS:   v.DurationS,
		ErrorText:   v.ErrorText,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
	}
	if v.IndexedAt != nil {
		resp.IndexedAt = v.IndexedAt.Format(time.RFC3339)
	}
	return resp
}
