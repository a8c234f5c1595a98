package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/service"
)

// RecognitionService is the workflow layer behind the recognition routes.
type RecognitionService interface {
	Enroll(ctx context.Context, label string, image []byte) (*service.Enrollment, error)
	ImportDescriptors(ctx context.Context, label string, embeddings []domain.Embedding) (*service.Enrollment, error)
	Verify(ctx context.Context, image []byte) (*service.Verification, error)
	ListIdentities(ctx context.Context) ([]domain.Identity, error)
	MarkAttendance(ctx context.Context, label string) (domain.AttendanceEvent, error)
}

// ImageResolver turns the "image" field of a request into raw image bytes.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
}

// RecognitionHandler serves enrollment, verification and attendance.
type RecognitionHandler struct {
	service RecognitionService
	images  ImageResolver
	logger  *slog.Logger
}

func NewRecognitionHandler(service RecognitionService, images ImageResolver, logger *slog.Logger) *RecognitionHandler {
	return &RecognitionHandler{
		service: service,
		images:  images,
		logger:  logger,
	}
}

// EnrollRequest body of POST /enrollnew
type EnrollRequest struct {
	Username string `json:"username"`
	Image    string `json:"image"`
}

// VerifyRequest body of POST /verify
type VerifyRequest struct {
	Image string `json:"image"`
}

// SaveEmployeeRequest body of POST /save-employee
type SaveEmployeeRequest struct {
	EmployeeID  string             `json:"employeeId"`
	Descriptors []domain.Embedding `json:"descriptors"`
}

// SaveEmployeeResponse response for save-employee endpoint
type SaveEmployeeResponse struct {
	EmployeeID  string `json:"employeeId"`
	Descriptors int    `json:"descriptors"`
	Samples     int    `json:"samples,omitempty"`
}

// MarkAttendanceRequest body of POST /mark-attendance
type MarkAttendanceRequest struct {
	EmployeeID string `json:"employeeId"`
}

// HelloRequest body of POST /helloworld
type HelloRequest struct {
	Name string `json:"name"`
}

// Enroll POST /enrollnew - add every face in the image to a user's record
func (h *RecognitionHandler) Enroll(c *fiber.Ctx) error {
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Image == "" {
		return domain.ErrValidationFailed.WithError(errors.New("username and image are required"))
	}
	// reject bad labels before fetching or decoding anything
	if err := domain.ValidateLabel(req.Username); err != nil {
		return err
	}

	ctx := c.UserContext()
	image, err := h.images.Resolve(ctx, req.Image)
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}

	enrollment, err := h.service.Enroll(ctx, req.Username, image)
	if err != nil {
		return err
	}

	return c.JSON(enrollment)
}

// Verify POST /verify - identify the first face in the image
func (h *RecognitionHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}
	if req.Image == "" {
		return domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	ctx := c.UserContext()
	image, err := h.images.Resolve(ctx, req.Image)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	verification, err := h.service.Verify(ctx, image)
	if err != nil {
		return err
	}

	return c.JSON(verification)
}

// SaveEmployee POST /save-employee - append descriptors computed by the client
func (h *RecognitionHandler) SaveEmployee(c *fiber.Ctx) error {
	var req SaveEmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.EmployeeID == "" || req.Descriptors == nil {
		return domain.ErrValidationFailed.WithError(errors.New("employeeId and descriptors are required"))
	}

	enrollment, err := h.service.ImportDescriptors(c.UserContext(), req.EmployeeID, req.Descriptors)
	if err != nil {
		return err
	}

	return c.JSON(SaveEmployeeResponse{
		EmployeeID:  enrollment.Label,
		Descriptors: enrollment.Faces,
		Samples:     enrollment.Samples,
	})
}

// MarkAttendance POST /mark-attendance - append to today's ledger
func (h *RecognitionHandler) MarkAttendance(c *fiber.Ctx) error {
	var req MarkAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.EmployeeID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("employeeId is required"))
	}

	event, err := h.service.MarkAttendance(c.UserContext(), req.EmployeeID)
	if err != nil {
		return err
	}

	return c.JSON(event)
}

// ListDescriptors GET /get-employee-descriptors - every readable identity
func (h *RecognitionHandler) ListDescriptors(c *fiber.Ctx) error {
	identities, err := h.service.ListIdentities(c.UserContext())
	if err != nil {
		return err
	}
	if identities == nil {
		identities = []domain.Identity{}
	}

	return c.JSON(identities)
}

// Hello POST /helloworld
func (h *RecognitionHandler) Hello(c *fiber.Ctx) error {
	var req HelloRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}
	if req.Name == "" {
		return domain.ErrValidationFailed.WithError(errors.New("name is required"))
	}

	return c.SendString(fmt.Sprintf("Hello, %s!", req.Name))
}
