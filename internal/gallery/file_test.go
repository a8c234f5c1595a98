package gallery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

func newTestStore(t *testing.T, dim int) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), dim, nil)
	require.NoError(t, err)
	return store
}

func vec(values ...float32) domain.Embedding {
	return domain.Embedding(values)
}

func TestFileStore_EnrollAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 3)

	samples := []domain.Embedding{
		vec(0.1, -0.25, 0.333333),
		vec(1e-7, 0.987654321, -1),
	}
	require.NoError(t, store.Enroll(ctx, "alice", samples))

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, samples, got, "stored embeddings must round-trip exactly")
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer, err := NewFileStore(dir, 3, nil)
	require.NoError(t, err)
	want := []domain.Identity{
		{Label: "alice", Embeddings: []domain.Embedding{vec(0.1, -0.25, 0.333333), vec(1e-7, 0.987654321, -1)}},
		{Label: "bob", Embeddings: []domain.Embedding{vec(3.4028235e38, -1.1754944e-38, 0)}},
	}
	for _, id := range want {
		require.NoError(t, writer.Enroll(ctx, id.Label, id.Embeddings))
	}

	reader, err := NewFileStore(dir, 3, nil)
	require.NoError(t, err)
	snap, err := reader.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, want, snap.Identities)
}

func TestFileStore_RejectsCaseVariantLabels(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Enroll(ctx, "alice", []domain.Embedding{vec(1, 0)}))

	for _, label := range []string{"Alice", "ALICE", "aLiCe"} {
		err := store.Enroll(ctx, label, []domain.Embedding{vec(0, 1)})
		assert.ErrorIs(t, err, domain.ErrLabelConflict, label)

		_, err = store.Get(ctx, label)
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound, label)
	}

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.Embedding{vec(1, 0)}, got, "samples must not be merged across spellings")

	snap, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Identities, 1)
	assert.Equal(t, "alice", snap.Identities[0].Label)
}

func TestFileStore_EnrollIsCumulative(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Enroll(ctx, "bob", []domain.Embedding{vec(1, 0), vec(0, 1)}))
	require.NoError(t, store.Enroll(ctx, "bob", []domain.Embedding{vec(0.5, 0.5)}))

	got, err := store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []domain.Embedding{vec(1, 0), vec(0, 1), vec(0.5, 0.5)}, got)
}

func TestFileStore_EnrollValidation(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		embeddings []domain.Embedding
		wantErr    error
	}{
		{
			name:       "empty label",
			label:      "",
			embeddings: []domain.Embedding{vec(1, 2)},
			wantErr:    domain.ErrInvalidLabel,
		},
		{
			name:       "path traversal",
			label:      "../escape",
			embeddings: []domain.Embedding{vec(1, 2)},
			wantErr:    domain.ErrInvalidLabel,
		},
		{
			name:       "separator in label",
			label:      "a/b",
			embeddings: []domain.Embedding{vec(1, 2)},
			wantErr:    domain.ErrInvalidLabel,
		},
		{
			name:       "no embeddings",
			label:      "carol",
			embeddings: nil,
			wantErr:    domain.ErrEmptyEmbeddingSet,
		},
		{
			name:       "wrong dimension",
			label:      "carol",
			embeddings: []domain.Embedding{vec(1, 2, 3)},
			wantErr:    domain.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, 2)

			err := store.Enroll(context.Background(), tt.label, tt.embeddings)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			entries, err := os.ReadDir(store.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries, "rejected enrollment must not touch storage")
		})
	}
}

func TestFileStore_EnrollDimensionMustMatchExistingRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	require.NoError(t, store.Enroll(ctx, "dave", []domain.Embedding{vec(1, 2)}))

	err := store.Enroll(ctx, "dave", []domain.Embedding{vec(1, 2, 3)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	got, err := store.Get(ctx, "dave")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileStore_EnrollRefusesToOverwriteCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	path := filepath.Join(store.Dir(), "erin.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	err := store.Enroll(ctx, "erin", []domain.Embedding{vec(1, 2)})
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestFileStore_GetMissing(t *testing.T) {
	store := newTestStore(t, 2)

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestFileStore_LoadAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Enroll(ctx, "zed", []domain.Embedding{vec(0, 1)}))
	require.NoError(t, store.Enroll(ctx, "a-b", []domain.Embedding{vec(1, 1)}))
	require.NoError(t, store.Enroll(ctx, "a", []domain.Embedding{vec(1, 0), vec(0.5, 0)}))

	// noise that must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "README.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ".zed.json123"), []byte("[["), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "nested.json"), 0o755))

	snap, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, []string{"a", "a-b", "zed"}, snap.Labels())
	assert.Equal(t, 4, snap.Samples())
	assert.Equal(t, []domain.Embedding{vec(1, 0), vec(0.5, 0)}, snap.Identities[0].Embeddings)
}

func TestFileStore_LoadAllReportsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Enroll(ctx, "good", []domain.Embedding{vec(1, 0)}))

	corrupt := map[string]string{
		"truncated": "[[0.1, 0.2",
		"empty":     "[]",
		"wrongdim":  "[[0.1, 0.2, 0.3]]",
		"object":    `{"label":"x"}`,
		"bad label": "[[0.1, 0.2]]",
	}
	for label, body := range corrupt {
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), label+".json"), []byte(body), 0o644))
	}

	snap, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, snap.Labels())
	require.Len(t, snap.Warnings, len(corrupt))

	for _, w := range snap.Warnings {
		assert.Contains(t, corrupt, w.Label)
		assert.ErrorIs(t, w, domain.ErrCorruptRecord, "warning for %q", w.Label)
	}
}

func TestFileStore_LoadAllEmpty(t *testing.T) {
	store := newTestStore(t, 2)

	snap, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Identities)
	assert.Empty(t, snap.Warnings)
}

func TestFileStore_LoadAllStorageUnavailable(t *testing.T) {
	store := newTestStore(t, 2)
	require.NoError(t, os.RemoveAll(store.Dir()))

	_, err := store.LoadAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), domain.ErrStorageUnavailable)
}

func TestFileStore_ReadsExistingOnDiskFormat(t *testing.T) {
	store := newTestStore(t, 3)

	body := `[[-0.09129, 0.1520377993583679, 0.0], [0.5, 0.25, -0.125]]`
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "legacy.json"), []byte(body), 0o644))

	got, err := store.Get(context.Background(), "legacy")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1520377993583679, got[0][1], 1e-7)
	assert.Equal(t, vec(0.5, 0.25, -0.125), got[1])
}

func TestFileStore_ConcurrentEnrollSameLabel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Enroll(ctx, "shared", []domain.Embedding{vec(float32(i), 0)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got, writers, "no enrollment may be lost")

	seen := make(map[float32]bool)
	for _, e := range got {
		seen[e[0]] = true
	}
	assert.Len(t, seen, writers)
}

func TestFileStore_ConcurrentEnrollAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Enroll(ctx, fmt.Sprintf("user-%02d", i), []domain.Embedding{vec(1, float32(i))}))
		}(i)
		go func() {
			defer wg.Done()
			snap, err := store.LoadAll(ctx)
			if assert.NoError(t, err) {
				assert.Empty(t, snap.Warnings, "readers must never observe a partial write")
			}
		}()
	}
	wg.Wait()

	snap, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Identities, 10)
	for i, id := range snap.Identities {
		assert.Equal(t, fmt.Sprintf("user-%02d", i), id.Label)
		assert.Equal(t, []domain.Embedding{vec(1, float32(i))}, id.Embeddings, id.Label)
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temp file %s left behind", e.Name())
	}
}

func TestFileStore_ContextCanceled(t *testing.T) {
	store := newTestStore(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Enroll(ctx, "late", []domain.Embedding{vec(1, 2)})
	assert.ErrorIs(t, err, context.Canceled)
}
