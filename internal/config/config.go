package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server       ServerConfig
	Worker       WorkerConfig
	Database     DatabaseConfig
	MinIO        MinIOConfig
	RabbitMQ     RabbitMQConfig
	Redis        RedisConfig
	ModelService ModelServiceConfig
	ModelClient  ModelClientConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	UploadURLTTL    time.Duration `envconfig:"API_UPLOAD_URL_TTL" default:"15m"`
	StatusCacheTTL  time.Duration `envconfig:"API_STATUS_CACHE_TTL" default:"5s"`
}

type WorkerConfig struct {
	TempDir         string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/scenedex"`
	TaskTimeout     time.Duration `envconfig:"WORKER_TASK_TIMEOUT" default:"600s"`
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"2"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	SceneThreshold  float64       `envconfig:"WORKER_SCENE_THRESHOLD" default:"0.4"`
	MinSceneLength  time.Duration `envconfig:"WORKER_MIN_SCENE_LENGTH" default:"1s"`
	ASRLanguage     string        `envconfig:"WORKER_ASR_LANGUAGE" default:""`
	FFmpegPath      string        `envconfig:"WORKER_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath     string        `envconfig:"WORKER_FFPROBE_PATH" default:"ffprobe"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"scenedex"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"scenedex"`
	DBName   string `envconfig:"POSTGRES_DB" default:"scenedex"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT" default:""`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	BucketUploads  string `envconfig:"MINIO_BUCKET_UPLOADS" default:"uploads"`
	BucketSidecars string `envconfig:"MINIO_BUCKET_SIDECARS" default:"sidecars"`
	BucketTmp      string `envconfig:"MINIO_BUCKET_TMP" default:"tmp"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"scenedex"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"scenedex"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelServiceConfig configures the inference server process.
type ModelServiceConfig struct {
	Port            int           `envconfig:"MODEL_SERVICE_PORT" default:"8001"`
	ReadTimeout     time.Duration `envconfig:"MODEL_SERVICE_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `envconfig:"MODEL_SERVICE_WRITE_TIMEOUT" default:"600s"`
	ShutdownTimeout time.Duration `envconfig:"MODEL_SERVICE_SHUTDOWN_TIMEOUT" default:"30s"`
	ModelsDir       string        `envconfig:"MODELS_DIR" default:"/models"`
	Device          string        `envconfig:"MODEL_SERVICE_DEVICE" default:"cpu"`
	MaxConcurrency  int64         `envconfig:"MODEL_SERVICE_MAX_CONCURRENCY" default:"4"`

	ASRBin       string `envconfig:"ASR_BIN" default:"whisper-cli"`
	ASRModel     string `envconfig:"ASR_MODEL" default:"ggml-medium.bin"`
	TextEmbedBin string `envconfig:"TEXT_EMBED_BIN" default:"embed-runner"`
	TextModel    string `envconfig:"TEXT_EMBED_MODEL" default:"text-encoder.onnx"`
	ImageModel   string `envconfig:"IMAGE_EMBED_MODEL" default:"vision-encoder.onnx"`
	FaceBin      string `envconfig:"FACE_BIN" default:"face-detect"`
	FaceModel    string `envconfig:"FACE_MODEL" default:"face_detection_yunet.onnx"`
	FaceEnabled  bool   `envconfig:"FEATURE_FACE" default:"true"`
}

// ModelClientConfig configures workers' access to the inference server.
type ModelClientConfig struct {
	BaseURL     string        `envconfig:"MODEL_SERVICE_URL" default:"http://localhost:8001"`
	Timeout     time.Duration `envconfig:"MODEL_SERVICE_TIMEOUT" default:"600s"`
	MaxAttempts int           `envconfig:"MODEL_SERVICE_MAX_ATTEMPTS" default:"3"`
	BackoffBase time.Duration `envconfig:"MODEL_SERVICE_BACKOFF_BASE" default:"250ms"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
