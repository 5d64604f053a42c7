package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hszk-dev/scenedex/internal/mis"
)

// WhisperCLIConfig configures the whisper.cpp command-line runner.
type WhisperCLIConfig struct {
	// BinPath is the path to the whisper-cli binary.
	BinPath string
	// ModelPath is the path to the ggml model file.
	ModelPath string
	// Threads caps CPU threads per transcription. 0 lets the binary decide.
	Threads int
}

// WhisperCLI implements Transcriber by shelling out to whisper.cpp.
// The binary writes its JSON output file next to the input.
type WhisperCLI struct {
	config WhisperCLIConfig
}

// Compile-time verification that WhisperCLI implements Transcriber.
var _ Transcriber = (*WhisperCLI)(nil)

// NewWhisperCLI creates a new whisper.cpp-backed transcriber.
func NewWhisperCLI(cfg WhisperCLIConfig) *WhisperCLI {
	return &WhisperCLI{config: cfg}
}

// whisperOutput mirrors the whisper.cpp -oj JSON file.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			FromMS int64 `json:"from"`
			ToMS   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs recognition over a mono 16 kHz WAV file and returns
// segments in time order. An empty result means no speech.
func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath, language string) ([]mis.Segment, error) {
	outPrefix := filepath.Join(filepath.Dir(wavPath), "transcript")

	args := []string{
		"-m", w.config.ModelPath,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"--no-prints",
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	if w.config.Threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", w.config.Threads))
	}

	cmd := exec.CommandContext(ctx, w.config.BinPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcription cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("whisper execution failed: %w: %s", err, out)
	}

	outPath := outPrefix + ".json"
	defer os.Remove(outPath)

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	segments := make([]mis.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		segments = append(segments, mis.Segment{
			StartS: float64(t.Offsets.FromMS) / 1000,
			EndS:   float64(t.Offsets.ToMS) / 1000,
			Text:   t.Text,
		})
	}

	return segments, nil
}
