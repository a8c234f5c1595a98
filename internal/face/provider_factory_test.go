package face

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider/mock"
)

func TestNewFaceProvider_DeepFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	tests := []struct {
		name         string
		providerType string
	}{
		{name: "explicit deepface provider", providerType: "deepface"},
		{name: "empty provider defaults to deepface", providerType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				ProviderType:    tt.providerType,
				DeepFaceURL:     server.URL,
				ProviderTimeout: time.Second,
				EmbeddingDim:    128,
			}

			lazy, err := NewFaceProvider(cfg)
			require.NoError(t, err)
			assert.False(t, lazy.Ready(), "provider must not initialize before first use")

			prov, err := lazy.Get(context.Background())
			require.NoError(t, err)
			assert.IsType(t, &deepface.Provider{}, prov)
			assert.True(t, lazy.Ready())
		})
	}
}

func TestNewFaceProvider_DeepFaceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := &config.Config{
		ProviderType:    "deepface",
		DeepFaceURL:     url,
		ProviderTimeout: time.Second,
	}

	lazy, err := NewFaceProvider(cfg)
	require.NoError(t, err)

	_, err = lazy.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, deepface.ErrDeepFaceUnavailable)
	assert.False(t, lazy.Ready())
}

func TestNewFaceProvider_Mock(t *testing.T) {
	cfg := &config.Config{ProviderType: "mock", EmbeddingDim: 64}

	lazy, err := NewFaceProvider(cfg)
	require.NoError(t, err)

	prov, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &mock.Provider{}, prov)

	faces, err := lazy.DetectFaces(context.Background(), mock.FaceImage(1))
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Len(t, faces[0].Embedding, 64)
}

func TestNewFaceProvider_UnknownType(t *testing.T) {
	cfg := &config.Config{ProviderType: "rekognition"}

	lazy, err := NewFaceProvider(cfg)
	require.Error(t, err)
	assert.Nil(t, lazy)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestCreateDeepFaceProvider_KeepsDefaultsForEmptyFields(t *testing.T) {
	prov := createDeepFaceProvider(&config.Config{})
	assert.NotNil(t, prov)
}
