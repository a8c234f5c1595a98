package matcher

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const (
	KindLinear = "linear"
	KindHNSW   = "hnsw"
)

// Result is the nearest enrolled sample to a probe. Label and Distance
// are set whenever the gallery had at least one comparable sample;
// Matched reports whether Distance is within the threshold.
type Result struct {
	Label    string
	Distance float64
	Matched  bool
}

// Matcher compares a probe against every identity in a gallery snapshot.
type Matcher interface {
	Match(probe domain.Embedding, identities []domain.Identity, threshold float64) Result
}

// New builds the matcher selected by kind.
func New(kind string, minSize, candidates int, logger *slog.Logger) (Matcher, error) {
	switch kind {
	case KindLinear, "":
		return Linear{}, nil
	case KindHNSW:
		return NewIndexed(minSize, candidates, logger), nil
	default:
		return nil, fmt.Errorf("unknown matcher: %s (supported: %s, %s)", kind, KindLinear, KindHNSW)
	}
}

// Linear scans every sample of every identity. Ties go to the smaller
// label, then to the earlier sample of that label.
type Linear struct{}

func (Linear) Match(probe domain.Embedding, identities []domain.Identity, threshold float64) Result {
	best := Result{Distance: math.Inf(1)}
	found := false

	for _, id := range identities {
		for _, sample := range id.Embeddings {
			d := Distance(probe, sample)
			if math.IsInf(d, 1) || math.IsNaN(d) {
				continue
			}
			if !found || d < best.Distance || (d == best.Distance && id.Label < best.Label) {
				best.Label = id.Label
				best.Distance = d
				found = true
			}
		}
	}

	if !found {
		return Result{Distance: math.Inf(1)}
	}
	best.Matched = best.Distance <= threshold
	return best
}

var _ Matcher = Linear{}
