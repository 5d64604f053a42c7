// Package mis holds the model inference service wire contract shared
// by the server and the pipeline-side client.
package mis

// Segment is one recognized speech span with its transcript text.
type Segment struct {
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
	Text   string  `json:"text"`
}

// TranscribeRequest carries base64-encoded mono 16 kHz PCM WAV audio.
type TranscribeRequest struct {
	AudioB64 string `json:"audio_b64"`
	Language string `json:"language,omitempty"`
}

// TranscribeResponse returns the recognized segments in time order.
type TranscribeResponse struct {
	Segments []Segment `json:"segments"`
}

// EmbedTextRequest carries a batch of texts to embed.
type EmbedTextRequest struct {
	Texts []string `json:"texts"`
}

// EmbedTextResponse returns one L2-normalized vector per input text,
// in input order.
type EmbedTextResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedImageRequest carries a batch of base64-encoded JPEG images.
type EmbedImageRequest struct {
	ImagesB64 []string `json:"images_b64"`
}

// EmbedImageResponse returns one L2-normalized vector per input image,
// in input order.
type EmbedImageResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// DetectFacesRequest carries one base64-encoded JPEG image.
type DetectFacesRequest struct {
	ImageB64 string `json:"image_b64"`
}

// FaceDetection is one detected face with its embedding.
type FaceDetection struct {
	// Box is the bounding box as [x, y, width, height] in pixels.
	Box [4]float64 `json:"box"`
	// Score is the detector confidence in [0, 1].
	Score float64 `json:"score"`
	// Vector is the L2-normalized face embedding.
	Vector []float32 `json:"vector"`
}

// DetectFacesResponse returns all detected faces.
type DetectFacesResponse struct {
	Faces []FaceDetection `json:"faces"`
}

// ModelInfo describes one loaded model in the health payload.
type ModelInfo struct {
	Name string `json:"name"`
	Dim  int    `json:"dim,omitempty"`
}

// HealthResponse reports service readiness and the loaded models.
type HealthResponse struct {
	Status    string      `json:"status"`
	Device    string      `json:"device"`
	Models    []ModelInfo `json:"models"`
	MemoryMB  uint64      `json:"memory_mb"`
	InFlight  int64       `json:"in_flight"`
	MaxNumber int64       `json:"max_concurrency"`
}

// ErrorResponse is the JSON error body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
