// Package server implements the model inference service: a small HTTP
// front over local model runner binaries, with a hard concurrency
// ceiling so heavy inference cannot pile up.
package server

import (
	"context"

	"github.com/hszk-dev/scenedex/internal/mis"
)

// Transcriber runs speech recognition over a WAV file on disk.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, language string) ([]mis.Segment, error)
}

// TextEmbedder embeds a batch of texts into L2-normalized vectors.
type TextEmbedder interface {
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageEmbedder embeds a batch of image files into L2-normalized vectors.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, imagePaths []string) ([][]float32, error)
}

// FaceDetector finds faces in one image file.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imagePath string) ([]mis.FaceDetection, error)
}
