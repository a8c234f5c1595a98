package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// FaceProvider is the embedding source: it turns an encoded image into one
// descriptor per detected face.
type FaceProvider interface {
	// DetectFaces returns the faces found in the image in detector order.
	// An image without faces yields an empty slice and a nil error.
	DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error)
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	Embedding   domain.Embedding `json:"embedding"`
	BoundingBox BoundingBox      `json:"bounding_box"`
	Confidence  float64          `json:"confidence"`
	// Landmarks are opaque to the gallery and only passed through.
	Landmarks []Point `json:"landmarks,omitempty"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a single facial landmark in image coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Embeddings extracts the descriptors from faces, preserving order.
func Embeddings(faces []DetectedFace) []domain.Embedding {
	out := make([]domain.Embedding, 0, len(faces))
	for _, f := range faces {
		out = append(out, f.Embedding)
	}
	return out
}
