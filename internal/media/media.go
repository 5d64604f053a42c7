package media

import (
	"context"
	"errors"
)

// ErrNoVideoStream is returned when the input has no decodable video stream.
var ErrNoVideoStream = errors.New("media: no video stream")

// ProbeResult contains container-level facts about an input file.
type ProbeResult struct {
	// DurationS is the container duration in seconds.
	DurationS float64
	// HasAudio reports whether the file carries at least one audio stream.
	HasAudio bool
	// HasVideo reports whether the file carries at least one video stream.
	HasVideo bool
}

// Span is a half-open time range [StartS, EndS) in seconds.
type Span struct {
	StartS float64
	EndS   float64
}

// Processor defines the media operations the indexing pipeline needs.
// Implementations shell out to the ffmpeg toolchain.
type Processor interface {
	// Probe inspects the input file and returns duration and stream facts.
	Probe(ctx context.Context, inputPath string) (*ProbeResult, error)

	// ExtractAudio decodes the audio track to mono 16 kHz PCM WAV at
	// outputPath, the format speech recognition expects.
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error

	// DetectScenes finds visual cut points and returns scene spans
	// covering [0, durationS). Spans shorter than the configured minimum
	// are merged into their neighbors. Always returns at least one span.
	DetectScenes(ctx context.Context, inputPath string, durationS float64) ([]Span, error)

	// ExtractFrame writes a single frame at the given timestamp as JPEG.
	ExtractFrame(ctx context.Context, inputPath string, atS float64, outputPath string) error
}
