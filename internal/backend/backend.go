// Package backend opens the gallery and attendance storage selected by
// GALLERY_BACKEND.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/attendance"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/database"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/gallery"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/repository"
)

// Attendance is the ledger side of a backend.
type Attendance interface {
	Mark(ctx context.Context, label string) (domain.AttendanceEvent, error)
	Entries(ctx context.Context, date string) ([]string, error)
}

type Backend struct {
	Gallery    gallery.Store
	Attendance Attendance
	close      func()
}

// Close releases connections held by the backend.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open returns the backend for cfg. The postgres backend migrates the
// schema before connecting the pool.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.GalleryBackend {
	case config.GalleryBackendPostgres:
		dbName, err := database.DatabaseName(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if _, err := database.MigrateUp(ctx, cfg.DatabaseURL, dbName, logger); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}

		pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}

		return &Backend{
			Gallery:    repository.NewGalleryRepository(pool, cfg.EmbeddingDim, logger),
			Attendance: repository.NewAttendanceRepository(pool, logger),
			close:      pool.Close,
		}, nil

	case config.GalleryBackendFile, "":
		store, err := gallery.NewFileStore(cfg.GalleryDir, cfg.EmbeddingDim, logger)
		if err != nil {
			return nil, fmt.Errorf("open gallery: %w", err)
		}
		ledger, err := attendance.NewLedger(cfg.AttendanceDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open attendance ledger: %w", err)
		}
		logger.Info("file gallery ready",
			slog.String("gallery_dir", store.Dir()),
			slog.String("attendance_dir", cfg.AttendanceDir),
		)
		return &Backend{Gallery: store, Attendance: ledger}, nil

	default:
		return nil, fmt.Errorf("unknown gallery backend: %s", cfg.GalleryBackend)
	}
}
