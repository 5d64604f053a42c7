package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/hszk-dev/scenedex/internal/mis"
)

// Config holds configuration for the inference HTTP server.
type Config struct {
	// MaxConcurrency caps in-flight inference requests; requests past
	// the ceiling get 503 instead of queueing.
	MaxConcurrency int64
	// Language is the default ASR language hint ("" = auto).
	Language string
}

// Server is the inference HTTP front. All inference endpoints share
// one weighted semaphore so the process never runs more than
// MaxConcurrency heavy jobs at once.
type Server struct {
	config   Config
	registry *Registry

	transcriber   Transcriber
	textEmbedder  TextEmbedder
	imageEmbedder ImageEmbedder
	faceDetector  FaceDetector // nil when the face feature is off

	sem      *semaphore.Weighted
	inFlight atomic.Int64
	logger   *slog.Logger
}

// NewServer wires the backends behind the HTTP surface.
func NewServer(cfg Config, registry *Registry, transcriber Transcriber, textEmbedder TextEmbedder, imageEmbedder ImageEmbedder, faceDetector FaceDetector, logger *slog.Logger) *Server {
	return &Server{
		config:        cfg,
		registry:      registry,
		transcriber:   transcriber,
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
		faceDetector:  faceDetector,
		sem:           semaphore.NewWeighted(cfg.MaxConcurrency),
		logger:        logger,
	}
}

// Router builds the chi router for the service.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcribe", s.handleTranscribe)
		r.Post("/embed/text", s.handleEmbedText)
		r.Post("/embed/image", s.handleEmbedImage)
		r.Post("/detect/faces", s.handleDetectFaces)
	})

	return r
}

// acquire takes one semaphore slot without blocking. A false return
// means the caller should answer 503.
func (s *Server) acquire() bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	s.inFlight.Add(1)
	return true
}

func (s *Server) release() {
	s.inFlight.Add(-1)
	s.sem.Release(1)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, mis.HealthResponse{
		Status:    "ok",
		Device:    s.registry.Device(),
		Models:    s.registry.Models(),
		MemoryMB:  mem.Alloc / (1 << 20),
		InFlight:  s.inFlight.Load(),
		MaxNumber: s.config.MaxConcurrency,
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req mis.TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioB64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_b64 is not valid base64")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio payload is empty")
		return
	}

	if !s.acquire() {
		writeError(w, http.StatusServiceUnavailable, "at capacity")
		return
	}
	defer s.release()

	dir, err := os.MkdirTemp("", "transcribe-*")
	if err != nil {
		s.internalError(w, "failed to create temp dir", err)
		return
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(wavPath, audio, 0600); err != nil {
		s.internalError(w, "failed to write audio", err)
		return
	}

	language := req.Language
	if language == "" {
		language = s.config.Language
	}

	segments, err := s.transcriber.Transcribe(r.Context(), wavPath, language)
	if err != nil {
		s.internalError(w, "transcription failed", err)
		return
	}

	if segments == nil {
		segments = []mis.Segment{}
	}
	writeJSON(w, http.StatusOK, mis.TranscribeResponse{Segments: segments})
}

func (s *Server) handleEmbedText(w http.ResponseWriter, r *http.Request) {
	var req mis.EmbedTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is empty")
		return
	}

	if !s.acquire() {
		writeError(w, http.StatusServiceUnavailable, "at capacity")
		return
	}
	defer s.release()

	vectors, err := s.textEmbedder.EmbedText(r.Context(), req.Texts)
	if err != nil {
		s.internalError(w, "text embedding failed", err)
		return
	}

	writeJSON(w, http.StatusOK, mis.EmbedTextResponse{Vectors: vectors})
}

func (s *Server) handleEmbedImage(w http.ResponseWriter, r *http.Request) {
	var req mis.EmbedImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.ImagesB64) == 0 {
		writeError(w, http.StatusBadRequest, "images_b64 is empty")
		return
	}

	if !s.acquire() {
		writeError(w, http.StatusServiceUnavailable, "at capacity")
		return
	}
	defer s.release()

	dir, err := os.MkdirTemp("", "embed-image-*")
	if err != nil {
		s.internalError(w, "failed to create temp dir", err)
		return
	}
	defer os.RemoveAll(dir)

	paths := make([]string, len(req.ImagesB64))
	for i, b64 := range req.ImagesB64 {
		img, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("images_b64[%d] is not valid base64", i))
			return
		}
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%03d.jpg", i))
		if err := os.WriteFile(paths[i], img, 0600); err != nil {
			s.internalError(w, "failed to write image", err)
			return
		}
	}

	vectors, err := s.imageEmbedder.EmbedImage(r.Context(), paths)
	if err != nil {
		s.internalError(w, "image embedding failed", err)
		return
	}

	writeJSON(w, http.StatusOK, mis.EmbedImageResponse{Vectors: vectors})
}

func (s *Server) handleDetectFaces(w http.ResponseWriter, r *http.Request) {
	if s.faceDetector == nil {
		writeError(w, http.StatusNotFound, "face detection is disabled")
		return
	}

	var req mis.DetectFacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	img, err := base64.StdEncoding.DecodeString(req.ImageB64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_b64 is not valid base64")
		return
	}
	if len(img) == 0 {
		writeError(w, http.StatusBadRequest, "image payload is empty")
		return
	}

	if !s.acquire() {
		writeError(w, http.StatusServiceUnavailable, "at capacity")
		return
	}
	defer s.release()

	dir, err := os.MkdirTemp("", "detect-faces-*")
	if err != nil {
		s.internalError(w, "failed to create temp dir", err)
		return
	}
	defer os.RemoveAll(dir)

	imagePath := filepath.Join(dir, "image.jpg")
	if err := os.WriteFile(imagePath, img, 0600); err != nil {
		s.internalError(w, "failed to write image", err)
		return
	}

	faces, err := s.faceDetector.DetectFaces(r.Context(), imagePath)
	if err != nil {
		s.internalError(w, "face detection failed", err)
		return
	}

	if faces == nil {
		faces = []mis.FaceDetection{}
	}
	writeJSON(w, http.StatusOK, mis.DetectFacesResponse{Faces: faces})
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, mis.ErrorResponse{Error: msg})
}
