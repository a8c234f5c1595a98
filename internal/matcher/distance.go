// Package matcher finds the enrolled identity nearest to a probe embedding.
package matcher

import (
	"math"

	"github.com/hupe1980/vecgo/distance"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// DefaultThreshold is the largest distance still accepted as the same
// person for 128-d descriptors.
const DefaultThreshold = 0.6

// Distance returns the Euclidean distance between a and b. Embeddings of
// different lengths are infinitely far apart.
func Distance(a, b domain.Embedding) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return math.Sqrt(float64(distance.SquaredL2(a, b)))
}
