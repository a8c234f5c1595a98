// Package attendance appends recognized identities to a per-day ledger.
package attendance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// DateLayout names ledger files and AttendanceEvent.Date.
const DateLayout = "2006-01-02"

// Ledger writes one text file per UTC calendar date, one label per line.
// Entries are only ever appended; repeated marks are kept.
type Ledger struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

func NewLedger(dir string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attendance dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		dir:    dir,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (l *Ledger) path(date string) string {
	return filepath.Join(l.dir, date+".txt")
}

// Mark appends label to today's ledger.
func (l *Ledger) Mark(ctx context.Context, label string) (domain.AttendanceEvent, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return domain.AttendanceEvent{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.AttendanceEvent{}, err
	}

	at := l.now().UTC()
	event := domain.AttendanceEvent{
		Label: label,
		Date:  at.Format(DateLayout),
		At:    at,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path(event.Date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.AttendanceEvent{}, domain.ErrStorageUnavailable.WithError(fmt.Errorf("open ledger: %w", err))
	}

	if _, err := f.WriteString(label + "\n"); err != nil {
		_ = f.Close()
		return domain.AttendanceEvent{}, domain.ErrStorageUnavailable.WithError(fmt.Errorf("append ledger: %w", err))
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return domain.AttendanceEvent{}, domain.ErrStorageUnavailable.WithError(fmt.Errorf("sync ledger: %w", err))
	}
	if err := f.Close(); err != nil {
		return domain.AttendanceEvent{}, domain.ErrStorageUnavailable.WithError(fmt.Errorf("close ledger: %w", err))
	}

	l.logger.Debug("attendance marked",
		slog.String("label", label),
		slog.String("date", event.Date),
	)
	return event, nil
}

// Entries returns the labels recorded on date (YYYY-MM-DD) in append
// order. A date with no ledger yields no entries.
func (l *Ledger) Entries(ctx context.Context, date string) ([]string, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("date %q: %w", date, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, domain.ErrStorageUnavailable.WithError(fmt.Errorf("open ledger: %w", err))
	}
	defer f.Close()

	entries := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ErrStorageUnavailable.WithError(fmt.Errorf("read ledger: %w", err))
	}
	return entries, nil
}
