package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/audit"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/gallery"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/matcher"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/ws"
)

// AttendanceLedger records that an identity was seen today.
type AttendanceLedger interface {
	Mark(ctx context.Context, label string) (domain.AttendanceEvent, error)
}

// EventPublisher receives workflow outcomes for live subscribers.
// Publish must not block.
type EventPublisher interface {
	Publish(eventType ws.EventType, data any)
}

// Enrollment is the outcome of adding samples to an identity.
// Samples is the record's size after the append, or zero when it could not
// be read back.
type Enrollment struct {
	Label   string `json:"username"`
	Faces   int    `json:"faces"`
	Samples int    `json:"samples,omitempty"`
}

// Verification is a successful 1:N match.
type Verification struct {
	ID            uuid.UUID               `json:"verification_id"`
	Label         string                  `json:"username"`
	Distance      float64                 `json:"distance"`
	FacesDetected int                     `json:"faces_detected"`
	Candidates    int                     `json:"candidates"`
	LatencyMs     int64                   `json:"latency_ms"`
	Attendance    *domain.AttendanceEvent `json:"attendance,omitempty"`
}

type RecognitionService struct {
	gallery        gallery.Store
	provider       provider.FaceProvider
	matcher        matcher.Matcher
	ledger         AttendanceLedger
	audit          audit.Logger
	events         []EventPublisher
	logger         *slog.Logger
	providerName   string
	threshold      float64
	autoAttendance bool
}

func NewRecognitionService(
	store gallery.Store,
	faceProvider provider.FaceProvider,
	m matcher.Matcher,
	ledger AttendanceLedger,
	auditLogger audit.Logger,
	logger *slog.Logger,
) *RecognitionService {
	if m == nil {
		m = matcher.Linear{}
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognitionService{
		gallery:      store,
		provider:     faceProvider,
		matcher:      m,
		ledger:       ledger,
		audit:        auditLogger,
		logger:       logger,
		providerName: "face",
		threshold:    matcher.DefaultThreshold,
	}
}

func (s *RecognitionService) WithThreshold(threshold float64) *RecognitionService {
	s.threshold = threshold
	return s
}

// WithAutoAttendance makes every successful Verify also mark attendance
// for the matched identity.
func (s *RecognitionService) WithAutoAttendance(enabled bool) *RecognitionService {
	s.autoAttendance = enabled
	return s
}

// WithEvents adds publishers that receive enrollments, verifications and
// attendance marks.
func (s *RecognitionService) WithEvents(publishers ...EventPublisher) *RecognitionService {
	s.events = append(s.events, publishers...)
	return s
}

// WithProviderName sets the provider name reported in audit events.
func (s *RecognitionService) WithProviderName(name string) *RecognitionService {
	s.providerName = name
	return s
}

// Enroll detects every face in image and appends all of their embeddings
// to label's record. The label is validated before any detection work.
func (s *RecognitionService) Enroll(ctx context.Context, label string, image []byte) (*Enrollment, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return nil, err
	}

	faces, err := s.provider.DetectFaces(ctx, image)
	if err != nil {
		s.logFailure(ctx, audit.EventIdentityEnrolled, label, err)
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		s.logFailure(ctx, audit.EventIdentityEnrolled, label, domain.ErrNoFaceDetected)
		return nil, domain.ErrNoFaceDetected
	}

	if err := s.gallery.Enroll(ctx, label, provider.Embeddings(faces)); err != nil {
		s.logFailure(ctx, audit.EventIdentityEnrolled, label, err)
		return nil, fmt.Errorf("enroll %q: %w", label, err)
	}

	enrollment := s.enrollment(ctx, label, len(faces))

	s.logSuccess(ctx, audit.EventIdentityEnrolled, label, s.providerName, map[string]string{
		"faces":   strconv.Itoa(enrollment.Faces),
		"samples": strconv.Itoa(enrollment.Samples),
	})
	s.publish(ws.EventIdentityEnrolled, enrollment)
	return enrollment, nil
}

// ImportDescriptors appends embeddings computed elsewhere to label's
// record. They go through the same validation as detected faces.
func (s *RecognitionService) ImportDescriptors(ctx context.Context, label string, embeddings []domain.Embedding) (*Enrollment, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return nil, err
	}

	if err := s.gallery.Enroll(ctx, label, embeddings); err != nil {
		s.logFailure(ctx, audit.EventDescriptorsImported, label, err)
		return nil, fmt.Errorf("import descriptors for %q: %w", label, err)
	}

	enrollment := s.enrollment(ctx, label, len(embeddings))

	s.logSuccess(ctx, audit.EventDescriptorsImported, label, "client", map[string]string{
		"descriptors": strconv.Itoa(len(embeddings)),
		"samples":     strconv.Itoa(enrollment.Samples),
	})
	s.publish(ws.EventIdentityEnrolled, enrollment)
	return enrollment, nil
}

// enrollment reports a durable append. A failed read-back leaves Samples
// unset rather than failing a write that already happened.
func (s *RecognitionService) enrollment(ctx context.Context, label string, added int) *Enrollment {
	enrollment := &Enrollment{Label: label, Faces: added}
	stored, err := s.gallery.Get(ctx, label)
	if err != nil {
		s.logger.WarnContext(ctx, "enrolled record could not be read back",
			slog.String("label", label),
			slog.Any("error", err),
		)
		return enrollment
	}
	enrollment.Samples = len(stored)
	return enrollment
}

// Verify identifies the first face in image against the whole gallery.
// It returns domain.ErrNoMatchFound when no enrolled sample is within the
// threshold.
func (s *RecognitionService) Verify(ctx context.Context, image []byte) (*Verification, error) {
	start := time.Now()

	faces, err := s.provider.DetectFaces(ctx, image)
	if err != nil {
		s.logFailure(ctx, audit.EventIdentityVerified, "", err)
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		s.logFailure(ctx, audit.EventIdentityVerified, "", domain.ErrNoFaceDetected)
		return nil, domain.ErrNoFaceDetected
	}
	if len(faces) > 1 {
		s.logger.DebugContext(ctx, "multiple faces in probe, using the first",
			slog.Int("faces", len(faces)),
		)
	}

	snap, err := s.gallery.LoadAll(ctx)
	if err != nil {
		s.logFailure(ctx, audit.EventIdentityVerified, "", err)
		return nil, fmt.Errorf("load gallery: %w", err)
	}

	result := s.matcher.Match(faces[0].Embedding, snap.Identities, s.threshold)
	if !result.Matched {
		s.logFailure(ctx, audit.EventIdentityVerified, "", domain.ErrNoMatchFound)
		return nil, domain.ErrNoMatchFound
	}

	verification := &Verification{
		ID:            uuid.New(),
		Label:         result.Label,
		Distance:      result.Distance,
		FacesDetected: len(faces),
		Candidates:    len(snap.Identities),
	}

	if s.autoAttendance && s.ledger != nil {
		event, err := s.ledger.Mark(ctx, result.Label)
		if err != nil {
			// the match stands even if the ledger is unavailable
			s.logger.ErrorContext(ctx, "auto attendance failed",
				slog.String("label", result.Label),
				slog.Any("error", err),
			)
		} else {
			verification.Attendance = &event
			s.publish(ws.EventAttendanceMarked, event)
		}
	}

	verification.LatencyMs = time.Since(start).Milliseconds()

	s.logSuccess(ctx, audit.EventIdentityVerified, result.Label, s.providerName, map[string]string{
		"verification_id": verification.ID.String(),
		"distance":        strconv.FormatFloat(result.Distance, 'f', 4, 64),
		"candidates":      strconv.Itoa(verification.Candidates),
	})
	s.publish(ws.EventIdentityVerified, verification)
	return verification, nil
}

// ListIdentities returns every readable identity with its embeddings.
func (s *RecognitionService) ListIdentities(ctx context.Context) ([]domain.Identity, error) {
	snap, err := s.gallery.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	if len(snap.Warnings) > 0 {
		s.logger.WarnContext(ctx, "gallery has unreadable records",
			slog.Int("skipped", len(snap.Warnings)),
		)
	}
	return snap.Identities, nil
}

// MarkAttendance appends label to today's attendance ledger.
func (s *RecognitionService) MarkAttendance(ctx context.Context, label string) (domain.AttendanceEvent, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return domain.AttendanceEvent{}, err
	}
	if s.ledger == nil {
		return domain.AttendanceEvent{}, errors.New("attendance ledger not configured")
	}

	event, err := s.ledger.Mark(ctx, label)
	if err != nil {
		s.logFailure(ctx, audit.EventAttendanceMarked, label, err)
		return domain.AttendanceEvent{}, fmt.Errorf("mark attendance for %q: %w", label, err)
	}

	s.logSuccess(ctx, audit.EventAttendanceMarked, label, "ledger", map[string]string{
		"date": event.Date,
	})
	s.publish(ws.EventAttendanceMarked, event)
	return event, nil
}

func (s *RecognitionService) publish(eventType ws.EventType, data any) {
	for _, p := range s.events {
		p.Publish(eventType, data)
	}
}

func (s *RecognitionService) logSuccess(ctx context.Context, eventType audit.EventType, label, source string, metadata map[string]string) {
	if err := s.audit.Log(ctx, audit.Event{
		EventType: eventType,
		Label:     label,
		Provider:  source,
		Success:   true,
		Metadata:  metadata,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.Any("error", err))
	}
}

func (s *RecognitionService) logFailure(ctx context.Context, eventType audit.EventType, label string, cause error) {
	if err := s.audit.Log(ctx, audit.Event{
		EventType: eventType,
		Label:     label,
		Provider:  s.providerName,
		Success:   false,
		Error:     cause.Error(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.Any("error", err))
	}
}
