package model

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// TextVecDim is the text embedding width (must match the scenes
	// table's text_vec column).
	TextVecDim = 1024
	// ImageVecDim is the vision embedding width (must match image_vec).
	ImageVecDim = 1152
	// FaceVecDim is the face embedding width on face_profiles.
	FaceVecDim = 512

	// normTolerance is the allowed deviation from unit length for
	// persisted embeddings.
	normTolerance = 1e-3
)

var (
	ErrInvalidInterval = errors.New("scene end must be greater than start and both non-negative")
	ErrBadVectorDim    = errors.New("embedding dimension does not match schema")
	ErrNotNormalized   = errors.New("embedding is not unit-normalized")
)

// Scene is a contiguous interval of a video paired with its aligned
// transcript and embeddings. Scenes are only materialized at the
// pipeline's commit stage.
type Scene struct {
	ID         uuid.UUID
	VideoID    uuid.UUID
	StartS     float64
	EndS       float64
	Transcript string
	TextVec    []float32
	ImageVec   []float32
	VisionTags map[string]any
	SidecarKey string
	CreatedAt  time.Time
}

// NewScene creates a Scene for the given interval.
func NewScene(videoID uuid.UUID, startS, endS float64) (*Scene, error) {
	if startS < 0 || endS <= startS {
		return nil, ErrInvalidInterval
	}
	return &Scene{
		ID:        uuid.New(),
		VideoID:   videoID,
		StartS:    startS,
		EndS:      endS,
		CreatedAt: time.Now(),
	}, nil
}

// SetTextVec attaches a text embedding after checking dimension and norm.
func (s *Scene) SetTextVec(vec []float32) error {
	if err := checkVector(vec, TextVecDim); err != nil {
		return err
	}
	s.TextVec = vec
	return nil
}

// SetImageVec attaches a vision embedding after checking dimension and norm.
func (s *Scene) SetImageVec(vec []float32) error {
	if err := checkVector(vec, ImageVecDim); err != nil {
		return err
	}
	s.ImageVec = vec
	return nil
}

func checkVector(vec []float32, dim int) error {
	if len(vec) != dim {
		return ErrBadVectorDim
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > normTolerance {
		return ErrNotNormalized
	}
	return nil
}

// ValidateTimeline checks that scenes, sorted by start, are pairwise
// non-overlapping and lie within [0, durationS].
func ValidateTimeline(scenes []*Scene, durationS float64) error {
	for i, s := range scenes {
		if s.StartS < 0 || s.EndS <= s.StartS {
			return ErrInvalidInterval
		}
		if s.EndS > durationS+normTolerance {
			return ErrInvalidInterval
		}
		if i > 0 && scenes[i-1].EndS > s.StartS {
			return ErrInvalidInterval
		}
	}
	return nil
}
