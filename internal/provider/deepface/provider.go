package deepface

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider"
)

// Provider implements provider.FaceProvider using DeepFace API
type Provider struct {
	client *Client
	dim    int
}

// NewProvider creates a new DeepFace provider. A positive dim makes the
// provider reject embeddings of any other length.
func NewProvider(config Config, dim int) *Provider {
	return &Provider{
		client: NewClient(config),
		dim:    dim,
	}
}

// Ping reports whether the DeepFace backend is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// DetectFaces returns one embedding per face DeepFace finds, in its order.
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if len(image) == 0 {
		return nil, domain.ErrInvalidImage.WithError(ErrInvalidImageFormat)
	}

	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Represent(ctx, imageBase64)
	if err != nil {
		if isNoFaceError(err) {
			return []provider.DetectedFace{}, nil
		}
		if isClientError(err) {
			return nil, domain.ErrInvalidImage.WithError(err)
		}
		return nil, domain.ErrProviderUnavailable.WithError(fmt.Errorf("detect faces: %w", err))
	}

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	for i, result := range resp.Results {
		if len(result.Embedding) == 0 {
			return nil, fmt.Errorf("face %d: %w: empty embedding", i, ErrInvalidResponse)
		}
		if p.dim > 0 && len(result.Embedding) != p.dim {
			return nil, fmt.Errorf("face %d: %w: got %d values, want %d (check DEEPFACE_MODEL)",
				i, ErrInvalidResponse, len(result.Embedding), p.dim)
		}

		faces = append(faces, provider.DetectedFace{
			Embedding: toEmbedding(result.Embedding),
			BoundingBox: provider.BoundingBox{
				X:      float64(result.FacialArea.X),
				Y:      float64(result.FacialArea.Y),
				Width:  float64(result.FacialArea.W),
				Height: float64(result.FacialArea.H),
			},
			Confidence: result.FaceConfidence,
			Landmarks:  landmarks(result.FacialArea),
		})
	}

	return faces, nil
}

func toEmbedding(values []float64) domain.Embedding {
	embedding := make(domain.Embedding, len(values))
	for i, v := range values {
		embedding[i] = float32(v)
	}
	return embedding
}

func landmarks(area FacialArea) []provider.Point {
	var points []provider.Point
	for _, eye := range []*[2]int{area.LeftEye, area.RightEye} {
		if eye == nil {
			continue
		}
		points = append(points, provider.Point{X: float64(eye[0]), Y: float64(eye[1])})
	}
	return points
}

// Ensure Provider implements provider.FaceProvider
var _ provider.FaceProvider = (*Provider)(nil)
