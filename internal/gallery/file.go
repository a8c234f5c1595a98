package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const recordExt = ".json"

// FileStore keeps one JSON file per identity, named after its label and
// holding an array of embeddings. Writes replace the file atomically.
// Labels that differ only in letter case would share a file on
// case-insensitive filesystems, so the first spelling enrolled owns the
// name and other spellings are rejected with ErrLabelConflict.
type FileStore struct {
	dir    string
	dim    int
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	loadParallelism int
}

// NewFileStore opens (and creates if needed) a gallery directory. A
// positive dim rejects embeddings of any other length.
func NewFileStore(dir string, dim int, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.ErrStorageUnavailable.WithError(fmt.Errorf("create gallery dir: %w", err))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:             dir,
		dim:             dim,
		logger:          logger,
		locks:           make(map[string]*sync.Mutex),
		loadParallelism: runtime.GOMAXPROCS(0) * 2,
	}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(label string) string {
	return filepath.Join(s.dir, label+recordExt)
}

func (s *FileStore) lockFor(label string) *sync.Mutex {
	key := strings.ToLower(label)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// caseVariant returns the stored label that equals label ignoring case but
// is spelled differently, or "" when there is none.
func (s *FileStore) caseVariant(label string) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", domain.ErrStorageUnavailable.WithError(fmt.Errorf("list gallery: %w", err))
	}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), recordExt)
		if !ok || entry.IsDir() || name == label {
			continue
		}
		if strings.EqualFold(name, label) {
			return name, nil
		}
	}
	return "", nil
}

func (s *FileStore) Enroll(ctx context.Context, label string, embeddings []domain.Embedding) error {
	if err := domain.ValidateLabel(label); err != nil {
		return err
	}
	if err := domain.ValidateEmbeddings(embeddings, s.dim); err != nil {
		return err
	}

	lock := s.lockFor(label)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	other, err := s.caseVariant(label)
	if err != nil {
		return err
	}
	if other != "" {
		return domain.ErrLabelConflict.WithError(fmt.Errorf("%q is already enrolled as %q", label, other))
	}

	existing, err := s.read(label)
	if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
		return fmt.Errorf("enroll %q: %w", label, err)
	}

	merged := make([]domain.Embedding, 0, len(existing)+len(embeddings))
	merged = append(merged, existing...)
	for _, e := range embeddings {
		merged = append(merged, e.Clone())
	}
	if err := domain.ValidateEmbeddings(merged, s.dim); err != nil {
		return err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", label, err)
	}

	if err := renameio.WriteFile(s.path(label), data, 0o644); err != nil {
		return domain.ErrStorageUnavailable.WithError(fmt.Errorf("write record %q: %w", label, err))
	}

	s.logger.Debug("gallery record written",
		slog.String("label", label),
		slog.Int("added", len(embeddings)),
		slog.Int("samples", len(merged)),
	)
	return nil
}

func (s *FileStore) Get(ctx context.Context, label string) ([]domain.Embedding, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	other, err := s.caseVariant(label)
	if err != nil {
		return nil, err
	}
	if other != "" {
		return nil, domain.ErrIdentityNotFound
	}
	return s.read(label)
}

func (s *FileStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.ErrStorageUnavailable.WithError(fmt.Errorf("list gallery: %w", err))
	}

	labels := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(name, recordExt))
	}

	type result struct {
		embeddings []domain.Embedding
		err        error
	}
	results := make([]result, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadParallelism)
	for i, label := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := domain.ValidateLabel(label); err != nil {
				results[i].err = domain.ErrCorruptRecord.WithError(err)
				return nil
			}
			embeddings, err := s.read(label)
			switch {
			case err == nil:
				results[i].embeddings = embeddings
			case errors.Is(err, domain.ErrCorruptRecord):
				results[i].err = err
			default:
				return fmt.Errorf("load %q: %w", label, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	snap := &Snapshot{Identities: make([]domain.Identity, 0, len(labels))}
	for i, label := range labels {
		if results[i].err != nil {
			snap.Warnings = append(snap.Warnings, RecordWarning{Label: label, Err: results[i].err})
			s.logger.Warn("skipping unreadable gallery record",
				slog.String("label", label),
				slog.Any("error", results[i].err),
			)
			continue
		}
		snap.Identities = append(snap.Identities, domain.Identity{
			Label:      label,
			Embeddings: results[i].embeddings,
		})
	}

	sort.Slice(snap.Identities, func(i, j int) bool {
		return snap.Identities[i].Label < snap.Identities[j].Label
	})
	sort.Slice(snap.Warnings, func(i, j int) bool {
		return snap.Warnings[i].Label < snap.Warnings[j].Label
	})

	return snap, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return domain.ErrStorageUnavailable.WithError(err)
	}
	if !info.IsDir() {
		return domain.ErrStorageUnavailable.WithError(fmt.Errorf("%s is not a directory", s.dir))
	}
	return nil
}

// read loads and validates one record. Missing files are
// ErrIdentityNotFound, undecodable or inconsistent content is
// ErrCorruptRecord and any other I/O failure is ErrStorageUnavailable.
func (s *FileStore) read(label string) ([]domain.Embedding, error) {
	data, err := os.ReadFile(s.path(label))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, domain.ErrStorageUnavailable.WithError(fmt.Errorf("read record %q: %w", label, err))
	}

	var embeddings []domain.Embedding
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, domain.ErrCorruptRecord.WithError(fmt.Errorf("decode record %q: %w", label, err))
	}
	if err := domain.ValidateEmbeddings(embeddings, s.dim); err != nil {
		return nil, domain.ErrCorruptRecord.WithError(fmt.Errorf("record %q: %w", label, err))
	}
	return embeddings, nil
}

var _ Store = (*FileStore)(nil)
