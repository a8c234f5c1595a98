package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/audit"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/gallery"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/matcher"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/provider"
)

type MockFaceProvider struct {
	mock.Mock
}

func (m *MockFaceProvider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.DetectedFace), args.Error(1)
}

type MockGalleryStore struct {
	mock.Mock
}

func (m *MockGalleryStore) Enroll(ctx context.Context, label string, embeddings []domain.Embedding) error {
	args := m.Called(ctx, label, embeddings)
	return args.Error(0)
}

func (m *MockGalleryStore) LoadAll(ctx context.Context) (*gallery.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gallery.Snapshot), args.Error(1)
}

func (m *MockGalleryStore) Get(ctx context.Context, label string) ([]domain.Embedding, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Embedding), args.Error(1)
}

func (m *MockGalleryStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Mark(ctx context.Context, label string) (domain.AttendanceEvent, error) {
	args := m.Called(ctx, label)
	return args.Get(0).(domain.AttendanceEvent), args.Error(1)
}

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func face(values ...float32) provider.DetectedFace {
	return provider.DetectedFace{Embedding: domain.Embedding(values), Confidence: 0.99}
}

func newFileGallery(t *testing.T) *gallery.FileStore {
	t.Helper()
	store, err := gallery.NewFileStore(t.TempDir(), 0, nil)
	require.NoError(t, err)
	return store
}

func TestRecognitionService_Enroll(t *testing.T) {
	image := []byte("image")

	tests := []struct {
		name        string
		label       string
		setupMocks  func(*MockFaceProvider)
		wantErr     error
		wantSamples int
		wantFaces   int
	}{
		{
			name:  "single face",
			label: "alice",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, image).Return([]provider.DetectedFace{face(0.1, 0.2)}, nil)
			},
			wantFaces:   1,
			wantSamples: 1,
		},
		{
			name:  "every detected face is stored",
			label: "alice",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, image).Return([]provider.DetectedFace{face(0.1, 0.2), face(0.3, 0.4)}, nil)
			},
			wantFaces:   2,
			wantSamples: 2,
		},
		{
			name:  "no face detected",
			label: "alice",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, image).Return([]provider.DetectedFace{}, nil)
			},
			wantErr: domain.ErrNoFaceDetected,
		},
		{
			name:  "provider failure",
			label: "alice",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, image).Return(nil, domain.ErrProviderUnavailable)
			},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:       "invalid label never reaches the provider",
			label:      "../alice",
			setupMocks: func(fp *MockFaceProvider) {},
			wantErr:    domain.ErrInvalidLabel,
		},
		{
			name:       "empty label",
			label:      "",
			setupMocks: func(fp *MockFaceProvider) {},
			wantErr:    domain.ErrInvalidLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faceProvider := &MockFaceProvider{}
			tt.setupMocks(faceProvider)
			store := newFileGallery(t)

			svc := NewRecognitionService(store, faceProvider, nil, nil, nil, nil)
			got, err := svc.Enroll(context.Background(), tt.label, image)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				snap, loadErr := store.LoadAll(context.Background())
				require.NoError(t, loadErr)
				assert.Empty(t, snap.Identities, "failed enrollment must not change the gallery")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.label, got.Label)
				assert.Equal(t, tt.wantFaces, got.Faces)
				assert.Equal(t, tt.wantSamples, got.Samples)
			}

			faceProvider.AssertExpectations(t)
			if errors.Is(tt.wantErr, domain.ErrInvalidLabel) {
				faceProvider.AssertNotCalled(t, "DetectFaces", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRecognitionService_EnrollIsCumulative(t *testing.T) {
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, []byte("first")).Return([]provider.DetectedFace{face(1, 0)}, nil)
	faceProvider.On("DetectFaces", mock.Anything, []byte("second")).Return([]provider.DetectedFace{face(0, 1)}, nil)

	store := newFileGallery(t)
	svc := NewRecognitionService(store, faceProvider, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, "bob", []byte("first"))
	require.NoError(t, err)
	got, err := svc.Enroll(ctx, "bob", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Samples)

	stored, err := store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []domain.Embedding{{1, 0}, {0, 1}}, stored)
}

func TestRecognitionService_Verify(t *testing.T) {
	ctx := context.Background()
	image := []byte("probe")

	seed := func(t *testing.T, store gallery.Store) {
		require.NoError(t, store.Enroll(ctx, "alice", []domain.Embedding{{0, 0}, {1, 1}}))
		require.NoError(t, store.Enroll(ctx, "bob", []domain.Embedding{{5, 5}}))
	}

	tests := []struct {
		name      string
		faces     []provider.DetectedFace
		detectErr error
		wantLabel string
		wantErr   error
	}{
		{
			name:      "matches nearest identity",
			faces:     []provider.DetectedFace{face(0.9, 1.1)},
			wantLabel: "alice",
		},
		{
			name:      "first face is the probe",
			faces:     []provider.DetectedFace{face(5, 5.2), face(0, 0)},
			wantLabel: "bob",
		},
		{
			name:    "nobody close enough",
			faces:   []provider.DetectedFace{face(2.5, 2.5)},
			wantErr: domain.ErrNoMatchFound,
		},
		{
			name:    "no face",
			faces:   []provider.DetectedFace{},
			wantErr: domain.ErrNoFaceDetected,
		},
		{
			name:      "invalid image",
			detectErr: domain.ErrInvalidImage,
			wantErr:   domain.ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faceProvider := &MockFaceProvider{}
			if tt.detectErr != nil {
				faceProvider.On("DetectFaces", mock.Anything, image).Return(nil, tt.detectErr)
			} else {
				faceProvider.On("DetectFaces", mock.Anything, image).Return(tt.faces, nil)
			}

			store := newFileGallery(t)
			seed(t, store)

			svc := NewRecognitionService(store, faceProvider, matcher.Linear{}, nil, nil, nil)
			got, err := svc.Verify(ctx, image)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, len(tt.faces), got.FacesDetected)
			assert.Equal(t, 2, got.Candidates)
			assert.LessOrEqual(t, got.Distance, matcher.DefaultThreshold)
			assert.NotEmpty(t, got.ID)
			assert.Nil(t, got.Attendance)
		})
	}
}

func TestRecognitionService_VerifyEmptyGallery(t *testing.T) {
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0, 0)}, nil)

	svc := NewRecognitionService(newFileGallery(t), faceProvider, nil, nil, nil, nil)
	_, err := svc.Verify(context.Background(), []byte("probe"))
	assert.ErrorIs(t, err, domain.ErrNoMatchFound)
}

func TestRecognitionService_VerifyStorageFailure(t *testing.T) {
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0, 0)}, nil)

	store := &MockGalleryStore{}
	store.On("LoadAll", mock.Anything).Return(nil, domain.ErrStorageUnavailable)

	svc := NewRecognitionService(store, faceProvider, nil, nil, nil, nil)
	_, err := svc.Verify(context.Background(), []byte("probe"))
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNoMatchFound, "faults must be distinguishable from no match")
}

func TestRecognitionService_VerifyThreshold(t *testing.T) {
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0, 0.5)}, nil)

	store := &MockGalleryStore{}
	store.On("LoadAll", mock.Anything).Return(&gallery.Snapshot{
		Identities: []domain.Identity{{Label: "alice", Embeddings: []domain.Embedding{{0, 0}}}},
	}, nil)

	svc := NewRecognitionService(store, faceProvider, nil, nil, nil, nil).WithThreshold(0.5)
	got, err := svc.Verify(context.Background(), []byte("probe"))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Label)

	svc.WithThreshold(0.49)
	_, err = svc.Verify(context.Background(), []byte("probe"))
	assert.ErrorIs(t, err, domain.ErrNoMatchFound)
}

func TestRecognitionService_VerifyAutoAttendance(t *testing.T) {
	ctx := context.Background()
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0, 0)}, nil)

	store := newFileGallery(t)
	require.NoError(t, store.Enroll(ctx, "alice", []domain.Embedding{{0, 0}}))

	event := domain.AttendanceEvent{Label: "alice", Date: "2026-01-02", At: time.Now().UTC()}
	ledger := &MockLedger{}
	ledger.On("Mark", mock.Anything, "alice").Return(event, nil).Once()

	svc := NewRecognitionService(store, faceProvider, nil, ledger, nil, nil).WithAutoAttendance(true)
	got, err := svc.Verify(ctx, []byte("probe"))
	require.NoError(t, err)
	require.NotNil(t, got.Attendance)
	assert.Equal(t, event, *got.Attendance)

	// ledger failures do not undo the match
	ledger.On("Mark", mock.Anything, "alice").Return(domain.AttendanceEvent{}, domain.ErrStorageUnavailable).Once()
	got, err = svc.Verify(ctx, []byte("probe"))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Label)
	assert.Nil(t, got.Attendance)

	ledger.AssertExpectations(t)
}

func TestRecognitionService_ImportDescriptors(t *testing.T) {
	ctx := context.Background()
	store := newFileGallery(t)
	svc := NewRecognitionService(store, &MockFaceProvider{}, nil, nil, nil, nil)

	got, err := svc.ImportDescriptors(ctx, "carol", []domain.Embedding{{0.1, 0.2}, {0.3, 0.4}})
	require.NoError(t, err)
	assert.Equal(t, &Enrollment{Label: "carol", Faces: 2, Samples: 2}, got)

	got, err = svc.ImportDescriptors(ctx, "carol", []domain.Embedding{{0.5, 0.6}})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Samples)

	_, err = svc.ImportDescriptors(ctx, "carol", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyEmbeddingSet)

	_, err = svc.ImportDescriptors(ctx, "carol", []domain.Embedding{{1, 2, 3}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = svc.ImportDescriptors(ctx, "", []domain.Embedding{{1, 2}})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)
}

func TestRecognitionService_ReadBackFailureKeepsEnrollment(t *testing.T) {
	blip := domain.ErrStorageUnavailable.WithError(errors.New("blip"))

	tests := []struct {
		name   string
		enroll func(*RecognitionService) (*Enrollment, error)
		event  audit.EventType
		faces  int
	}{
		{
			name: "enroll",
			enroll: func(svc *RecognitionService) (*Enrollment, error) {
				return svc.Enroll(context.Background(), "alice", []byte("image"))
			},
			event: audit.EventIdentityEnrolled,
			faces: 1,
		},
		{
			name: "import descriptors",
			enroll: func(svc *RecognitionService) (*Enrollment, error) {
				return svc.ImportDescriptors(context.Background(), "alice", []domain.Embedding{{1, 0}, {0, 1}})
			},
			event: audit.EventDescriptorsImported,
			faces: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faceProvider := &MockFaceProvider{}
			faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0.1, 0.2)}, nil)

			store := &MockGalleryStore{}
			store.On("Enroll", mock.Anything, "alice", mock.Anything).Return(nil).Once()
			store.On("Get", mock.Anything, "alice").Return(nil, blip)

			auditLogger := &MockAuditLogger{}
			auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
				return e.EventType == tt.event && e.Label == "alice" && e.Success
			})).Return(nil).Once()

			recorder := &eventRecorder{}
			svc := NewRecognitionService(store, faceProvider, nil, nil, auditLogger, nil).WithEvents(recorder)

			got, err := tt.enroll(svc)
			require.NoError(t, err)
			assert.Equal(t, &Enrollment{Label: "alice", Faces: tt.faces}, got)
			assert.Len(t, recorder.events, 1)

			store.AssertNumberOfCalls(t, "Enroll", 1)
			auditLogger.AssertExpectations(t)
		})
	}
}

func TestRecognitionService_ListIdentities(t *testing.T) {
	ctx := context.Background()
	store := newFileGallery(t)
	require.NoError(t, store.Enroll(ctx, "bob", []domain.Embedding{{1, 1}}))
	require.NoError(t, store.Enroll(ctx, "alice", []domain.Embedding{{0, 0}}))

	svc := NewRecognitionService(store, &MockFaceProvider{}, nil, nil, nil, nil)
	got, err := svc.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Label)
	assert.Equal(t, "bob", got[1].Label)

	failing := &MockGalleryStore{}
	failing.On("LoadAll", mock.Anything).Return(nil, domain.ErrStorageUnavailable)
	_, err = NewRecognitionService(failing, &MockFaceProvider{}, nil, nil, nil, nil).ListIdentities(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestRecognitionService_MarkAttendance(t *testing.T) {
	ctx := context.Background()
	event := domain.AttendanceEvent{Label: "alice", Date: "2026-01-02"}

	ledger := &MockLedger{}
	ledger.On("Mark", mock.Anything, "alice").Return(event, nil)

	auditLogger := &MockAuditLogger{}
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.EventType == audit.EventAttendanceMarked && e.Label == "alice" && e.Success
	})).Return(nil).Once()

	svc := NewRecognitionService(newFileGallery(t), &MockFaceProvider{}, nil, ledger, auditLogger, nil)

	got, err := svc.MarkAttendance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, event, got)

	_, err = svc.MarkAttendance(ctx, "bad label")
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)

	ledger.AssertNumberOfCalls(t, "Mark", 1)
	auditLogger.AssertExpectations(t)
}

func TestRecognitionService_AuditsVerification(t *testing.T) {
	faceProvider := &MockFaceProvider{}
	faceProvider.On("DetectFaces", mock.Anything, mock.Anything).Return([]provider.DetectedFace{face(0, 0)}, nil)

	store := &MockGalleryStore{}
	store.On("LoadAll", mock.Anything).Return(&gallery.Snapshot{
		Identities: []domain.Identity{{Label: "alice", Embeddings: []domain.Embedding{{0, 0}}}},
	}, nil)

	auditLogger := &MockAuditLogger{}
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.EventType == audit.EventIdentityVerified &&
			e.Label == "alice" &&
			e.Provider == "mock" &&
			e.Metadata["distance"] == "0.0000"
	})).Return(errors.New("audit sink down"))

	svc := NewRecognitionService(store, faceProvider, nil, nil, auditLogger, nil).WithProviderName("mock")
	got, err := svc.Verify(context.Background(), []byte("probe"))
	require.NoError(t, err, "audit failures must not fail the request")
	assert.Equal(t, "alice", got.Label)
	auditLogger.AssertExpectations(t)
}
