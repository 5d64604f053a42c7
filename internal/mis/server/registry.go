package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/mis"
)

// ErrModelMissing is returned when a required model file is absent
// from the models directory. The service refuses to start rather than
// fail lazily on the first request.
var ErrModelMissing = errors.New("model file missing")

// RegistryConfig names the model files the service loads.
type RegistryConfig struct {
	ModelsDir   string
	Device      string
	ASRModel    string
	TextModel   string
	ImageModel  string
	FaceModel   string
	FaceEnabled bool
}

// Registry resolves model files under the models directory and holds
// the inventory reported by the health endpoint.
type Registry struct {
	config RegistryConfig
	models []mis.ModelInfo
}

// NewRegistry verifies every configured model file exists and returns
// the registry. Any missing file fails startup.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	required := []struct {
		name string
		dim  int
	}{
		{cfg.ASRModel, 0},
		{cfg.TextModel, model.TextVecDim},
		{cfg.ImageModel, model.ImageVecDim},
	}
	if cfg.FaceEnabled {
		required = append(required, struct {
			name string
			dim  int
		}{cfg.FaceModel, model.FaceVecDim})
	}

	var missing []string
	models := make([]mis.ModelInfo, 0, len(required))
	for _, m := range required {
		path := filepath.Join(cfg.ModelsDir, m.name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			missing = append(missing, path)
			continue
		}
		models = append(models, mis.ModelInfo{Name: m.name, Dim: m.dim})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrModelMissing, missing)
	}

	return &Registry{
		config: cfg,
		models: models,
	}, nil
}

// ModelPath resolves a model file name under the models directory.
func (r *Registry) ModelPath(name string) string {
	return filepath.Join(r.config.ModelsDir, name)
}

// Device reports the configured inference device.
func (r *Registry) Device() string {
	return r.config.Device
}

// Models returns the loaded model inventory for the health payload.
func (r *Registry) Models() []mis.ModelInfo {
	return r.models
}
