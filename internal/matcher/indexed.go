package matcher

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coder/hnsw"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const (
	DefaultHNSWMinSize    = 1000
	DefaultHNSWCandidates = 64

	hnswMaxNeighbors = 16
	hnswEfSearch     = 256
)

type indexEntry struct {
	label     string
	embedding domain.Embedding
}

type graphIndex struct {
	fingerprint uint64
	graph       *hnsw.Graph[int]
	entries     []indexEntry
}

// Indexed answers matches from an HNSW graph over every sample. The graph
// is rebuilt whenever the gallery content changes, detected by a hash of
// labels and embedding bits. Candidates returned by the graph are
// re-ranked with exact distances; when none of them is within the
// threshold the gallery is scanned linearly, so a probe that has an
// accepted neighbor is never reported as unmatched. Galleries below
// minSize samples, or with samples of mixed length, are always scanned
// linearly.
type Indexed struct {
	minSize    int
	candidates int
	logger     *slog.Logger

	mu     sync.Mutex
	index  *graphIndex
	builds int
}

func NewIndexed(minSize, candidates int, logger *slog.Logger) *Indexed {
	if minSize <= 0 {
		minSize = DefaultHNSWMinSize
	}
	if candidates <= 0 {
		candidates = DefaultHNSWCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexed{
		minSize:    minSize,
		candidates: candidates,
		logger:     logger,
	}
}

func (m *Indexed) Match(probe domain.Embedding, identities []domain.Identity, threshold float64) Result {
	total, uniform := sampleStats(identities, len(probe))
	if total < m.minSize || !uniform {
		return Linear{}.Match(probe, identities, threshold)
	}

	idx := m.indexFor(identities)
	neighbors := idx.graph.Search([]float32(probe), m.candidates)

	best := Result{Distance: math.Inf(1)}
	bestKey := -1
	for _, n := range neighbors {
		e := idx.entries[n.Key]
		d := Distance(probe, e.embedding)
		if bestKey < 0 || d < best.Distance ||
			(d == best.Distance && (e.label < best.Label || (e.label == best.Label && n.Key < bestKey))) {
			best.Label = e.label
			best.Distance = d
			bestKey = n.Key
		}
	}

	if bestKey < 0 || best.Distance > threshold {
		return Linear{}.Match(probe, identities, threshold)
	}
	best.Matched = true
	return best
}

func (m *Indexed) indexFor(identities []domain.Identity) *graphIndex {
	fp := Fingerprint(identities)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index != nil && m.index.fingerprint == fp {
		return m.index
	}

	start := time.Now()
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1 / math.Log(float64(hnswMaxNeighbors))
	g.EfSearch = max(hnswEfSearch, m.candidates)
	g.Distance = hnsw.EuclideanDistance

	var entries []indexEntry
	for _, id := range identities {
		for _, sample := range id.Embeddings {
			key := len(entries)
			entries = append(entries, indexEntry{label: id.Label, embedding: sample})
			g.Add(hnsw.MakeNode(key, []float32(sample)))
		}
	}

	m.index = &graphIndex{fingerprint: fp, graph: g, entries: entries}
	m.builds++

	m.logger.Info("hnsw index rebuilt",
		slog.Int("identities", len(identities)),
		slog.Int("samples", len(entries)),
		slog.Duration("took", time.Since(start)),
	)
	return m.index
}

// sampleStats counts samples and reports whether all of them have length dim.
func sampleStats(identities []domain.Identity, dim int) (int, bool) {
	total := 0
	uniform := dim > 0
	for _, id := range identities {
		for _, sample := range id.Embeddings {
			total++
			if len(sample) != dim {
				uniform = false
			}
		}
	}
	return total, uniform
}

// Fingerprint hashes the labels and exact embedding bits of a gallery in
// iteration order. Any enrollment changes it.
func Fingerprint(identities []domain.Identity) uint64 {
	h := xxhash.New()
	var buf [8]byte

	for _, id := range identities {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(id.Label)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(id.Label)
		binary.LittleEndian.PutUint64(buf[:], uint64(len(id.Embeddings)))
		_, _ = h.Write(buf[:])
		for _, sample := range id.Embeddings {
			binary.LittleEndian.PutUint32(buf[:4], uint32(len(sample)))
			_, _ = h.Write(buf[:4])
			for _, v := range sample {
				binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
				_, _ = h.Write(buf[:4])
			}
		}
	}
	return h.Sum64()
}

var _ Matcher = (*Indexed)(nil)
