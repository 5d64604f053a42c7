package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoState represents the lifecycle state of a video.
// The canonical lowercase string is what gets persisted; unknown
// strings are rejected on read.
type VideoState string

const (
	VideoStateUploading  VideoState = "uploading"
	VideoStateValidating VideoState = "validating"
	VideoStateProcessing VideoState = "processing"
	VideoStateIndexed    VideoState = "indexed"
	VideoStateFailed     VideoState = "failed"
	VideoStateDeleted    VideoState = "deleted"
)

// Valid state transitions:
// uploading -> validating -> processing -> indexed
//                       \-> failed   \-> failed
// Any non-terminal state may move to deleted.
// indexed, failed and deleted are terminal.
var videoTransitions = map[VideoState][]VideoState{
	VideoStateUploading:  {VideoStateValidating, VideoStateDeleted},
	VideoStateValidating: {VideoStateProcessing, VideoStateFailed, VideoStateDeleted},
	VideoStateProcessing: {VideoStateIndexed, VideoStateFailed, VideoStateDeleted},
	VideoStateIndexed:    {},
	VideoStateFailed:     {},
	VideoStateDeleted:    {},
}

func (s VideoState) IsValid() bool {
	switch s {
	case VideoStateUploading, VideoStateValidating, VideoStateProcessing,
		VideoStateIndexed, VideoStateFailed, VideoStateDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are permitted.
func (s VideoState) IsTerminal() bool {
	allowed, ok := videoTransitions[s]
	return ok && len(allowed) == 0
}

func (s VideoState) CanTransitionTo(next VideoState) bool {
	allowed, ok := videoTransitions[s]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == next {
			return true
		}
	}
	return false
}

func (s VideoState) String() string {
	return string(s)
}

// ParseVideoState converts a persisted string into a VideoState,
// rejecting anything outside the known set.
func ParseVideoState(s string) (VideoState, error) {
	state := VideoState(s)
	if !state.IsValid() {
		return "", ErrUnknownState
	}
	return state, nil
}

const (
	// MaxVideoSizeBytes is the upload size ceiling (1 GiB).
	MaxVideoSizeBytes = int64(1 << 30)
	// MaxVideoDurationSeconds is the longest video the pipeline accepts.
	MaxVideoDurationSeconds = 600.0
	// MaxFilenameBytes bounds the client-supplied filename.
	MaxFilenameBytes = 255
)

// AllowedMimeTypes enumerates the accepted upload container formats.
var AllowedMimeTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/quicktime":  {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/webm":       {},
}

var (
	ErrUnknownState      = errors.New("unknown state string")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidUserID     = errors.New("user ID cannot be nil")
	ErrInvalidMimeType   = errors.New("unsupported video MIME type")
	ErrInvalidSize       = errors.New("size must be positive and at most 1 GiB")
	ErrInvalidFilename   = errors.New("filename is empty or exceeds 255 bytes")
	ErrDurationExceeded  = errors.New("video duration exceeds 600 seconds")
)

// Video is the unit of ingestion. StorageKey and UserID are immutable
// once set; DurationS stays nil until validation succeeds and
// IndexedAt stays nil until the commit stage.
type Video struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	StorageKey  string
	MimeType    string
	SizeBytes   int64
	Title       string
	Description string
	DurationS   *float64
	State       VideoState
	ErrorText   string
	CreatedAt   time.Time
	IndexedAt   *time.Time
}

// NewVideo validates upload parameters and creates a Video in the
// uploading state. Every call allocates a fresh ID; init is
// deliberately non-idempotent.
func NewVideo(userID uuid.UUID, filename, mimeType string, sizeBytes int64, title, description string) (*Video, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	if _, ok := AllowedMimeTypes[mimeType]; !ok {
		return nil, ErrInvalidMimeType
	}
	if sizeBytes <= 0 || sizeBytes > MaxVideoSizeBytes {
		return nil, ErrInvalidSize
	}
	clean := SanitizeFilename(filename)
	if clean == "" || len(clean) > MaxFilenameBytes {
		return nil, ErrInvalidFilename
	}

	id := uuid.New()
	if title == "" {
		title = clean
	}
	return &Video{
		ID:          id,
		UserID:      userID,
		StorageKey:  UploadKey(userID, id, clean),
		MimeType:    mimeType,
		SizeBytes:   sizeBytes,
		Title:       title,
		Description: description,
		State:       VideoStateUploading,
		CreatedAt:   time.Now(),
	}, nil
}

// TransitionTo attempts to change the video state.
func (v *Video) TransitionTo(next VideoState) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !v.State.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	v.State = next
	return nil
}

// MarkIndexed transitions to indexed and stamps IndexedAt, keeping the
// state=indexed <=> indexed_at invariant in one place.
func (v *Video) MarkIndexed(at time.Time) error {
	if err := v.TransitionTo(VideoStateIndexed); err != nil {
		return err
	}
	v.IndexedAt = &at
	return nil
}

// MarkFailed transitions to failed and records a short reason.
func (v *Video) MarkFailed(reason string) error {
	if err := v.TransitionTo(VideoStateFailed); err != nil {
		return err
	}
	v.ErrorText = reason
	return nil
}

// SetDuration records the probed duration, enforcing the ceiling.
func (v *Video) SetDuration(seconds float64) error {
	if seconds > MaxVideoDurationSeconds {
		return ErrDurationExceeded
	}
	v.DurationS = &seconds
	return nil
}

// SanitizeFilename strips path separators and traversal components
// from a client-supplied filename.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// UploadKey builds the storage key for an original upload.
// Format: uploads/{user_id}/{video_id}/{filename}
func UploadKey(userID, videoID uuid.UUID, filename string) string {
	return "uploads/" + userID.String() + "/" + videoID.String() + "/" + filename
}

// SidecarKey builds the storage key for a per-scene sidecar.
// Format: sidecars/{user_id}/{video_id}/{scene_id}.json
func SidecarKey(userID, videoID, sceneID uuid.UUID) string {
	return "sidecars/" + userID.String() + "/" + videoID.String() + "/" + sceneID.String() + ".json"
}
