package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const attendanceDateLayout = "2006-01-02"

// AttendanceRepository keeps the attendance ledger in Postgres next to
// the gallery. Days are UTC calendar dates and repeated marks are kept.
type AttendanceRepository struct {
	pool   PgxPool
	now    func() time.Time
	logger *slog.Logger
}

func NewAttendanceRepository(pool PgxPool, logger *slog.Logger) *AttendanceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceRepository{pool: pool, now: time.Now, logger: logger}
}

func (r *AttendanceRepository) Mark(ctx context.Context, label string) (domain.AttendanceEvent, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return domain.AttendanceEvent{}, err
	}

	at := r.now().UTC()
	event := domain.AttendanceEvent{
		Label: label,
		Date:  at.Format(attendanceDateLayout),
		At:    at,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_events (label, day, marked_at)
		VALUES ($1, $2, $3)
	`, label, day(at), at)
	if err != nil {
		return domain.AttendanceEvent{}, storageError(fmt.Errorf("mark attendance: %w", err))
	}

	r.logger.Debug("attendance marked", slog.String("label", label), slog.String("date", event.Date))
	return event, nil
}

// Entries returns the labels marked on date in insertion order.
func (r *AttendanceRepository) Entries(ctx context.Context, date string) ([]string, error) {
	parsed, err := time.Parse(attendanceDateLayout, date)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("date %q: %w", date, err))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT label
		FROM attendance_events
		WHERE day = $1
		ORDER BY id
	`, day(parsed))
	if err != nil {
		return nil, storageError(fmt.Errorf("list attendance: %w", err))
	}
	defer rows.Close()

	entries := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, storageError(fmt.Errorf("scan attendance: %w", err))
		}
		entries = append(entries, label)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(fmt.Errorf("iterate attendance: %w", err))
	}
	return entries, nil
}

// day truncates t to midnight UTC for the DATE column.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
