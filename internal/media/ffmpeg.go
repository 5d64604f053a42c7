package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// FFmpegConfig holds configuration for the ffmpeg-backed processor.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary.
	FFprobePath string

	// SceneThreshold is the scene-change score cutoff in [0, 1].
	// Higher values detect fewer, harder cuts. Default: 0.4
	SceneThreshold float64

	// MinSceneLengthS is the minimum scene length in seconds; shorter
	// detections are merged into their neighbors. Default: 1.0
	MinSceneLengthS float64
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		SceneThreshold:  0.4,
		MinSceneLengthS: 1.0,
	}
}

// commandRunner abstracts subprocess execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs commands with exec.CommandContext.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// FFmpegProcessor implements Processor using the ffmpeg CLI toolchain.
type FFmpegProcessor struct {
	config FFmpegConfig
	runner commandRunner
}

// Compile-time verification that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new ffmpeg-based processor.
func NewFFmpegProcessor(cfg FFmpegConfig) *FFmpegProcessor {
	return &FFmpegProcessor{
		config: cfg,
		runner: execRunner{},
	}
}

// probeOutput mirrors the ffprobe JSON we consume.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// Probe inspects the input with ffprobe.
func (p *FFmpegProcessor) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	if err := validateInput(inputPath); err != nil {
		return nil, err
	}

	stdout, _, err := p.runner.Run(ctx, p.config.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration %q: %w", out.Format.Duration, err)
	}

	result := &ProbeResult{DurationS: duration}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			result.HasAudio = true
		case "video":
			result.HasVideo = true
		}
	}

	if !result.HasVideo {
		return nil, ErrNoVideoStream
	}

	return result, nil
}

// ExtractAudio decodes the audio track to mono 16 kHz PCM WAV.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if err := validateInput(inputPath); err != nil {
		return err
	}

	_, _, err := p.runner.Run(ctx, p.config.FFmpegPath,
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("audio extraction cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

// DetectScenes runs the scene-change filter and turns the detected cut
// points into spans covering [0, durationS).
func (p *FFmpegProcessor) DetectScenes(ctx context.Context, inputPath string, durationS float64) ([]Span, error) {
	if err := validateInput(inputPath); err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("select='gt(scene,%g)',showinfo", p.config.SceneThreshold)

	// The select/showinfo filters log detected frames to stderr; the
	// null muxer discards the actual frames.
	_, stderr, err := p.runner.Run(ctx, p.config.FFmpegPath,
		"-i", inputPath,
		"-vf", filter,
		"-f", "null",
		"-",
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scene detection cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	cuts, err := parseSceneCuts(bytes.NewReader(stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene cuts: %w", err)
	}

	return buildSpans(cuts, durationS, p.config.MinSceneLengthS), nil
}

// ExtractFrame writes a single frame at the given timestamp as JPEG.
func (p *FFmpegProcessor) ExtractFrame(ctx context.Context, inputPath string, atS float64, outputPath string) error {
	if err := validateInput(inputPath); err != nil {
		return err
	}

	// -ss before -i seeks on the demuxer, which is fast and accurate
	// enough for a representative frame.
	_, _, err := p.runner.Run(ctx, p.config.FFmpegPath,
		"-ss", strconv.FormatFloat(atS, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("frame extraction cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	// ffmpeg can exit zero without producing output when seeking past
	// the last frame.
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("no frame produced at %.3fs", atS)
	}

	return nil
}

// validateInput checks if the input file exists and is readable.
func validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}
