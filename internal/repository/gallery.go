package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/gallery"
)

// GalleryRepository stores identities in Postgres, one row per embedding.
type GalleryRepository struct {
	pool   PgxPool
	dim    int
	logger *slog.Logger
}

func NewGalleryRepository(pool PgxPool, dim int, logger *slog.Logger) *GalleryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &GalleryRepository{pool: pool, dim: dim, logger: logger}
}

// Enroll appends all embeddings in one transaction. A transaction-scoped
// advisory lock on the lowercased label serializes concurrent enrollments
// of the same identity so positions stay dense. As with the file store, a
// label whose case-folded spelling is already taken is ErrLabelConflict.
func (r *GalleryRepository) Enroll(ctx context.Context, label string, embeddings []domain.Embedding) error {
	if err := domain.ValidateLabel(label); err != nil {
		return err
	}
	if err := domain.ValidateEmbeddings(embeddings, r.dim); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageError(fmt.Errorf("begin enroll: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`, label); err != nil {
		return storageError(fmt.Errorf("lock label: %w", err))
	}

	var next, existingDim int
	var other string
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0), COALESCE(MAX(vector_dims(embedding)), 0),
			COALESCE((
				SELECT label FROM identity_embeddings
				WHERE lower(label) = lower($1) AND label <> $1
				LIMIT 1
			), '')
		FROM identity_embeddings
		WHERE label = $1
	`, label).Scan(&next, &existingDim, &other)
	if err != nil {
		return storageError(fmt.Errorf("read record state: %w", err))
	}

	if other != "" {
		return domain.ErrLabelConflict.WithError(fmt.Errorf("%q is already enrolled as %q", label, other))
	}

	if existingDim > 0 && existingDim != len(embeddings[0]) {
		return domain.ErrDimensionMismatch.WithError(
			fmt.Errorf("record %q holds %d-d embeddings, got %d", label, existingDim, len(embeddings[0])))
	}

	for i, e := range embeddings {
		_, err := tx.Exec(ctx, `
			INSERT INTO identity_embeddings (label, position, embedding)
			VALUES ($1, $2, $3)
		`, label, next+i, pgvector.NewVector(e))
		if err != nil {
			if isUniqueViolation(err) {
				return storageError(fmt.Errorf("concurrent write to %q: %w", label, err))
			}
			return storageError(fmt.Errorf("insert embedding: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError(fmt.Errorf("commit enroll: %w", err))
	}
	return nil
}

func (r *GalleryRepository) LoadAll(ctx context.Context) (*gallery.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT label, embedding
		FROM identity_embeddings
		ORDER BY label COLLATE "C", position
	`)
	if err != nil {
		return nil, storageError(fmt.Errorf("load gallery: %w", err))
	}
	defer rows.Close()

	snap := &gallery.Snapshot{Identities: []domain.Identity{}}
	var current *domain.Identity

	flush := func() {
		if current == nil {
			return
		}
		if err := domain.ValidateEmbeddings(current.Embeddings, r.dim); err != nil {
			w := gallery.RecordWarning{Label: current.Label, Err: domain.ErrCorruptRecord.WithError(err)}
			snap.Warnings = append(snap.Warnings, w)
			r.logger.Warn("skipping unreadable gallery record",
				slog.String("label", current.Label),
				slog.Any("error", w.Err),
			)
		} else {
			snap.Identities = append(snap.Identities, *current)
		}
		current = nil
	}

	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, storageError(fmt.Errorf("scan embedding: %w", err))
		}
		if current == nil || current.Label != label {
			flush()
			current = &domain.Identity{Label: label}
		}
		current.Embeddings = append(current.Embeddings, domain.Embedding(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(fmt.Errorf("iterate gallery: %w", err))
	}
	flush()

	return snap, nil
}

func (r *GalleryRepository) Get(ctx context.Context, label string) ([]domain.Embedding, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT embedding
		FROM identity_embeddings
		WHERE label = $1
		ORDER BY position
	`, label)
	if err != nil {
		return nil, storageError(fmt.Errorf("get %q: %w", label, err))
	}
	defer rows.Close()

	var embeddings []domain.Embedding
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, storageError(fmt.Errorf("scan embedding: %w", err))
		}
		embeddings = append(embeddings, domain.Embedding(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(fmt.Errorf("iterate %q: %w", label, err))
	}

	if len(embeddings) == 0 {
		return nil, domain.ErrIdentityNotFound
	}
	return embeddings, nil
}

func (r *GalleryRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storageError(err)
	}
	return nil
}

var _ gallery.Store = (*GalleryRepository)(nil)
