package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider/mock"
)

// ProviderType defines supported face recognition provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace provider (remote inference server)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeMock is the deterministic in-process provider
	ProviderTypeMock ProviderType = "mock"
)

// NewFaceProvider returns a lazily initialized FaceProvider for the
// configured backend. Nothing is contacted until the first detection; for
// DeepFace the first call waits for the server to answer a ping.
//
// Environment variables:
//   - PROVIDER_TYPE: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - DEEPFACE_MODEL / DEEPFACE_DETECTOR: model and detector backend
//   - PROVIDER_TIMEOUT: per-request timeout against the backend
func NewFaceProvider(cfg *config.Config) (*provider.Lazy, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeDeepFace, "":
		prov := createDeepFaceProvider(cfg)
		return provider.NewLazy(func(ctx context.Context) (provider.FaceProvider, error) {
			if err := prov.Ping(ctx); err != nil {
				return nil, err
			}
			return prov, nil
		}), nil

	case ProviderTypeMock:
		prov := mock.New(cfg.EmbeddingDim)
		return provider.NewLazy(func(context.Context) (provider.FaceProvider, error) {
			return prov, nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeMock)
	}
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.ProviderTimeout > 0 {
		deepfaceConfig.Timeout = cfg.ProviderTimeout
	}

	return deepface.NewProvider(deepfaceConfig, cfg.EmbeddingDim)
}
