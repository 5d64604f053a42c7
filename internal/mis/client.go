package mis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hszk-dev/scenedex/internal/infrastructure/metrics"
)

// ErrUnavailable is returned when the service stays overloaded or
// unreachable past the retry budget. Callers treat it as transient.
var ErrUnavailable = errors.New("inference service unavailable")

// ClientConfig holds configuration for the inference client.
type ClientConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8001.
	BaseURL string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxAttempts is the total number of tries per call.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:     baseURL,
		Timeout:     600 * time.Second,
		MaxAttempts: 3,
		BackoffBase: 250 * time.Millisecond,
	}
}

// Client calls the model inference service over HTTP. Overload (503)
// and transport failures are retried with doubling backoff.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new inference client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Transcribe runs speech recognition on mono 16 kHz PCM WAV audio.
func (c *Client) Transcribe(ctx context.Context, wav []byte, language string) ([]Segment, error) {
	req := TranscribeRequest{
		AudioB64: base64.StdEncoding.EncodeToString(wav),
		Language: language,
	}
	var resp TranscribeResponse
	if err := c.post(ctx, "/v1/transcribe", metrics.InferenceEndpointTranscribe, req, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}

// EmbedText embeds a batch of texts. Vectors come back in input order.
func (c *Client) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	req := EmbedTextRequest{Texts: texts}
	var resp EmbedTextResponse
	if err := c.post(ctx, "/v1/embed/text", metrics.InferenceEndpointEmbedText, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embed/text returned %d vectors for %d texts", len(resp.Vectors), len(texts))
	}
	return resp.Vectors, nil
}

// EmbedImage embeds a batch of JPEG images. Vectors come back in input order.
func (c *Client) EmbedImage(ctx context.Context, images [][]byte) ([][]float32, error) {
	req := EmbedImageRequest{ImagesB64: make([]string, len(images))}
	for i, img := range images {
		req.ImagesB64[i] = base64.StdEncoding.EncodeToString(img)
	}
	var resp EmbedImageResponse
	if err := c.post(ctx, "/v1/embed/image", metrics.InferenceEndpointEmbedImage, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(images) {
		return nil, fmt.Errorf("embed/image returned %d vectors for %d images", len(resp.Vectors), len(images))
	}
	return resp.Vectors, nil
}

// DetectFaces finds faces in one JPEG image.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]FaceDetection, error) {
	req := DetectFacesRequest{ImageB64: base64.StdEncoding.EncodeToString(image)}
	var resp DetectFacesResponse
	if err := c.post(ctx, "/v1/detect/faces", metrics.InferenceEndpointDetectFaces, req, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

// Health fetches the service readiness payload. It is not retried.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health returned status %d", httpResp.StatusCode)
	}

	var resp HealthResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &resp, nil
}

// post sends one JSON request with retry on overload and transport
// failure. Backoff starts at BackoffBase and doubles per attempt.
func (c *Client) post(ctx context.Context, path, endpoint string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := c.config.BackoffBase
	var lastErr error

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		retryable, err := c.doOnce(ctx, path, payload, respBody)
		metrics.InferenceDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.InferenceRequestsTotal.WithLabelValues(endpoint, metrics.InferenceStatusSuccess).Inc()
			return nil
		}

		lastErr = err
		if !retryable {
			metrics.InferenceRequestsTotal.WithLabelValues(endpoint, metrics.InferenceStatusError).Inc()
			return err
		}
		metrics.InferenceRequestsTotal.WithLabelValues(endpoint, metrics.InferenceStatusOverloaded).Inc()
	}

	return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, lastErr)
}

// doOnce performs a single request. The bool reports whether the
// failure is worth retrying.
func (c *Client) doOnce(ctx context.Context, path string, payload []byte, respBody any) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(httpResp.Body).Decode(respBody); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
		return false, nil

	case httpResp.StatusCode == http.StatusServiceUnavailable:
		return true, fmt.Errorf("service overloaded (503)")

	default:
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return false, fmt.Errorf("inference error (status %d): %s", httpResp.StatusCode, errResp.Error)
		}
		return false, fmt.Errorf("inference error (status %d)", httpResp.StatusCode)
	}
}
