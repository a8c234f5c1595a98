package mock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider"
)

// DefaultDimension matches the 128-d descriptors of the reference model
const DefaultDimension = 128

// Provider implements provider.FaceProvider for tests and local development.
// Identical images yield identical embeddings. An image whose pixels are
// all the same color has no face; an image at least twice as wide as it
// is tall has two.
type Provider struct {
	dim int
}

// New creates a mock provider producing dim-length embeddings.
func New(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dim: dim}
}

// DetectFaces simulates face detection on a decodable image
func (p *Provider) DetectFaces(ctx context.Context, data []byte) ([]provider.DetectedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image: %w", err))
	}

	if isUniform(img) {
		return []provider.DetectedFace{}, nil
	}

	bounds := img.Bounds()
	count := 1
	if bounds.Dx() >= 2*bounds.Dy() {
		count = 2
	}

	faces := make([]provider.DetectedFace, count)
	for i := range faces {
		faces[i] = provider.DetectedFace{
			Embedding: generateEmbedding(data, i, p.dim),
			BoundingBox: provider.BoundingBox{
				X:      0.1 + float64(i)*0.5,
				Y:      0.1,
				Width:  0.8 / float64(count),
				Height: 0.8,
			},
			Confidence: 0.99,
		}
	}
	return faces, nil
}

func isUniform(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}

// generateEmbedding derives a unit-length embedding from the image hash
func generateEmbedding(data []byte, face, dim int) domain.Embedding {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{byte(face)})
	hash := h.Sum(nil)

	embedding := make(domain.Embedding, dim)
	hashLen := len(hash)

	for i := 0; i < dim; i++ {
		// mix position into the byte so dimensions beyond the hash length differ
		idx := i % hashLen
		v := hash[idx] ^ byte(i/hashLen*31)
		embedding[i] = (float32(v)/255.0)*2 - 1
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}

	return embedding
}

var _ provider.FaceProvider = (*Provider)(nil)
