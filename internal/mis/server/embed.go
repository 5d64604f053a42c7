package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/hszk-dev/scenedex/internal/mis"
)

// EmbedRunnerConfig configures the ONNX embedding runner binary.
type EmbedRunnerConfig struct {
	// BinPath is the path to the embed-runner binary.
	BinPath string
	// TextModelPath is the ONNX text encoder.
	TextModelPath string
	// ImageModelPath is the ONNX vision encoder.
	ImageModelPath string
	// Device selects the execution provider (cpu, cuda).
	Device string
}

// embedRequest is the runner's stdin contract. Exactly one of Texts
// or ImagePaths is set, matching the mode flag.
type embedRequest struct {
	Texts      []string `json:"texts,omitempty"`
	ImagePaths []string `json:"image_paths,omitempty"`
}

// embedResponse is the runner's stdout contract.
type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedRunner implements TextEmbedder and ImageEmbedder by piping
// JSON through the embed-runner binary.
type EmbedRunner struct {
	config EmbedRunnerConfig
}

// Compile-time verification of the backend interfaces.
var (
	_ TextEmbedder  = (*EmbedRunner)(nil)
	_ ImageEmbedder = (*EmbedRunner)(nil)
)

// NewEmbedRunner creates a new embedding runner.
func NewEmbedRunner(cfg EmbedRunnerConfig) *EmbedRunner {
	return &EmbedRunner{config: cfg}
}

// EmbedText embeds a batch of texts. Output vectors are re-normalized
// so downstream dimension checks never trip on runner rounding.
func (e *EmbedRunner) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	return e.run(ctx, "text", e.config.TextModelPath, embedRequest{Texts: texts}, len(texts))
}

// EmbedImage embeds a batch of image files.
func (e *EmbedRunner) EmbedImage(ctx context.Context, imagePaths []string) ([][]float32, error) {
	return e.run(ctx, "image", e.config.ImageModelPath, embedRequest{ImagePaths: imagePaths}, len(imagePaths))
}

func (e *EmbedRunner) run(ctx context.Context, mode, modelPath string, req embedRequest, wantCount int) ([][]float32, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.config.BinPath,
		"--mode", mode,
		"--model", modelPath,
		"--device", e.config.Device,
	)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("embed runner failed: %w: %s", err, stderr.String())
	}

	var resp embedResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse embed runner output: %w", err)
	}

	if len(resp.Vectors) != wantCount {
		return nil, fmt.Errorf("embed runner returned %d vectors, want %d", len(resp.Vectors), wantCount)
	}

	for i := range resp.Vectors {
		mis.Normalize(resp.Vectors[i])
	}

	return resp.Vectors, nil
}
