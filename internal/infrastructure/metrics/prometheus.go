// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scenedex"

var (
	// StageDurationSeconds tracks per-stage pipeline latency.
	// Labels:
	//   - stage: upload_validate .. commit
	//   - outcome: success, error
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "outcome"},
	)

	// PipelineRunsTotal tracks full pipeline runs by terminal outcome.
	// Labels:
	//   - outcome: indexed, failed, skipped, retried
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)

	// TasksPublishedTotal counts indexing tasks handed to the broker.
	TasksPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_published_total",
			Help:      "Total number of indexing tasks published",
		},
	)

	// InferenceRequestsTotal tracks calls to the model inference service.
	// Labels:
	//   - endpoint: transcribe, embed_text, embed_image, detect_faces
	//   - status: success, error, overloaded
	InferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of inference service requests",
		},
		[]string{"endpoint", "status"},
	)

	// InferenceDurationSeconds tracks inference latency per endpoint.
	InferenceDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Inference request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	// CacheOperationsTotal tracks status cache operations.
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// HTTPRequestDurationSeconds tracks control-plane request latency.
	// Labels:
	//   - method: HTTP method
	//   - route: chi route pattern, e.g. /v1/videos/{id}/status
	//   - status: numeric status code
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior on status reads.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Pipeline outcome constants.
const (
	PipelineOutcomeIndexed = "indexed"
	PipelineOutcomeFailed  = "failed"
	PipelineOutcomeSkipped = "skipped"
	PipelineOutcomeRetried = "retried"
)

// Stage outcome constants.
const (
	StageOutcomeSuccess = "success"
	StageOutcomeError   = "error"
)

// Inference endpoint constants.
const (
	InferenceEndpointTranscribe  = "transcribe"
	InferenceEndpointEmbedText   = "embed_text"
	InferenceEndpointEmbedImage  = "embed_image"
	InferenceEndpointDetectFaces = "detect_faces"
)

// Inference status constants.
const (
	InferenceStatusSuccess    = "success"
	InferenceStatusError      = "error"
	InferenceStatusOverloaded = "overloaded"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
