package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/hszk-dev/scenedex/internal/mis"
)

// FaceDetectConfig configures the face detection runner binary.
type FaceDetectConfig struct {
	// BinPath is the path to the face-detect binary.
	BinPath string
	// ModelPath is the YuNet detection model.
	ModelPath string
	// MinScore filters out detections below this confidence.
	MinScore float64
}

// DefaultFaceDetectConfig returns a FaceDetectConfig with sensible defaults.
func DefaultFaceDetectConfig(binPath, modelPath string) FaceDetectConfig {
	return FaceDetectConfig{
		BinPath:   binPath,
		ModelPath: modelPath,
		MinScore:  0.7,
	}
}

// faceDetectOutput is the runner's stdout contract.
type faceDetectOutput struct {
	Faces []mis.FaceDetection `json:"faces"`
}

// FaceDetect implements FaceDetector by shelling out to the detection
// runner binary.
type FaceDetect struct {
	config FaceDetectConfig
}

// Compile-time verification that FaceDetect implements FaceDetector.
var _ FaceDetector = (*FaceDetect)(nil)

// NewFaceDetect creates a new face detection runner.
func NewFaceDetect(cfg FaceDetectConfig) *FaceDetect {
	return &FaceDetect{config: cfg}
}

// DetectFaces finds faces in one image file. Low-confidence hits are
// dropped and embeddings are re-normalized.
func (f *FaceDetect) DetectFaces(ctx context.Context, imagePath string) ([]mis.FaceDetection, error) {
	cmd := exec.CommandContext(ctx, f.config.BinPath,
		"--model", f.config.ModelPath,
		"--input", imagePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("face detection cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("face detect runner failed: %w: %s", err, stderr.String())
	}

	var out faceDetectOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse face detect output: %w", err)
	}

	faces := make([]mis.FaceDetection, 0, len(out.Faces))
	for _, face := range out.Faces {
		if face.Score < f.config.MinScore {
			continue
		}
		mis.Normalize(face.Vector)
		faces = append(faces, face)
	}

	return faces, nil
}
