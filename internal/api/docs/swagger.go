package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
)

// EnrollRequest is the body of POST /enrollnew
type EnrollRequest struct {
	Username string `json:"username" example:"alice"`
	Image    string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ..."`
}

// EnrollResponse represents a successful enrollment
type EnrollResponse struct {
	Username string `json:"username" example:"alice"`
	Faces    int    `json:"faces" example:"1"`
	Samples  int    `json:"samples" example:"3"`
}

// VerifyRequest is the body of POST /verify
type VerifyRequest struct {
	Image string `json:"image" example:"blob:http://localhost:3001/6f1c2a9e-4b1d-4f3e-9a57-0c2d1b7e8f10"`
}

// AttendanceData is the attendance mark recorded by a verification
type AttendanceData struct {
	EmployeeID string `json:"employeeId" example:"alice"`
	Date       string `json:"date" example:"2024-03-10"`
	At         string `json:"at" example:"2024-03-10T08:59:12Z"`
}

// VerifyResponse represents a successful identification
type VerifyResponse struct {
	VerificationID string          `json:"verification_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username       string          `json:"username" example:"alice"`
	Distance       float64         `json:"distance" example:"0.41"`
	FacesDetected  int             `json:"faces_detected" example:"1"`
	Candidates     int             `json:"candidates" example:"42"`
	LatencyMs      int64           `json:"latency_ms" example:"180"`
	Attendance     *AttendanceData `json:"attendance,omitempty"`
}

// SaveEmployeeRequest is the body of POST /save-employee
type SaveEmployeeRequest struct {
	EmployeeID  string      `json:"employeeId" example:"alice"`
	Descriptors [][]float64 `json:"descriptors"`
}

// SaveEmployeeResponse represents stored client-side descriptors
type SaveEmployeeResponse struct {
	EmployeeID  string `json:"employeeId" example:"alice"`
	Descriptors int    `json:"descriptors" example:"2"`
	Samples     int    `json:"samples" example:"5"`
}

// MarkAttendanceRequest is the body of POST /mark-attendance
type MarkAttendanceRequest struct {
	EmployeeID string `json:"employeeId" example:"alice"`
}

// IdentityData is one enrolled identity with its descriptors
type IdentityData struct {
	Label       string      `json:"label" example:"alice"`
	Descriptors [][]float64 `json:"descriptors"`
}

// HelloRequest is the body of POST /helloworld
type HelloRequest struct {
	Name string `json:"name" example:"Ada"`
}

// HealthResponse represents liveness and readiness responses
type HealthResponse struct {
	Status   string `json:"status" example:"ready"`
	Version  string `json:"version,omitempty" example:"0.1.0"`
	Gallery  string `json:"gallery,omitempty" example:"ok"`
	Provider string `json:"provider,omitempty" example:"ready"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code      string `json:"code" example:"VALIDATION_FAILED"`
	Message   string `json:"message" example:"Request validation failed"`
	RequestID string `json:"request_id,omitempty" example:"0b7c4c1e-3f7a-4c39-9d1a-8f5e2b6a1c44"`
}

var internalError = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")

func NewSwagger(host string) *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Rollcall Attendance API",
		Version:     "v1.0.0",
		Description: "Face enrollment, identification against the enrolled gallery, and daily attendance",
		Host:        host,
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /enrollnew - Enroll
		endpoint.New(
			endpoint.POST,
			"/enrollnew",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Enroll faces for a user"),
			endpoint.WithDescription("Detects every face in the image and appends their descriptors to the user's record. Records are cumulative. The image may be a data URL, bare base64, or a blob/http URL."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(EnrollRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "200", "Faces enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "username and image are required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_LABEL", Message: "Identity label is empty or contains unsupported characters"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "LABEL_CONFLICT", Message: "Another identity already uses this label with different letter case"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: "Gallery storage is unavailable"}, "503", "Service Unavailable"),
				internalError,
			}),
		),

		// POST /verify - Identify
		endpoint.New(
			endpoint.POST,
			"/verify",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Identify a face"),
			endpoint.WithDescription("Matches the first face in the image against every enrolled descriptor and returns the closest identity within the threshold"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(VerifyRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerifyResponse{}, "200", "Identity matched"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "image is required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NO_MATCH_FOUND", Message: "No matching user found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "PROVIDER_UNAVAILABLE", Message: "Face recognition backend is unavailable"}, "503", "Service Unavailable"),
				internalError,
			}),
		),

		// POST /save-employee - Import descriptors
		endpoint.New(
			endpoint.POST,
			"/save-employee",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("Store client-computed descriptors"),
			endpoint.WithDescription("Appends descriptors computed by the client to the employee's record"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(SaveEmployeeRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SaveEmployeeResponse{}, "200", "Descriptors stored"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "employeeId and descriptors are required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "LABEL_CONFLICT", Message: "Another identity already uses this label with different letter case"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "EMPTY_EMBEDDING_SET", Message: "At least one embedding is required"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "DIMENSION_MISMATCH", Message: "Embedding dimensionality does not match the gallery"}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// POST /mark-attendance - Attendance
		endpoint.New(
			endpoint.POST,
			"/mark-attendance",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Mark attendance"),
			endpoint.WithDescription("Appends the employee to the attendance ledger of the current UTC date. Repeated marks are kept."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(MarkAttendanceRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceData{}, "200", "Attendance recorded"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "employeeId is required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_LABEL", Message: "Identity label is empty or contains unsupported characters"}, "400", "Bad Request"),
				internalError,
			}),
		),

		// GET /get-employee-descriptors - List gallery
		endpoint.New(
			endpoint.GET,
			"/get-employee-descriptors",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("List enrolled identities"),
			endpoint.WithDescription("Returns every readable identity with its descriptors. Unreadable records are skipped."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]IdentityData{}, "200", "Identities"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: "Gallery storage is unavailable"}, "503", "Service Unavailable"),
				internalError,
			}),
		),

		// POST /helloworld
		endpoint.New(
			endpoint.POST,
			"/helloworld",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Greeting"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.MIME("text/plain")}),
			endpoint.WithBody(HelloRequest{}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "name is required"}, "400", "Bad Request"),
			}),
		),

		// GET /ws - Live feed
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Live event feed"),
			endpoint.WithDescription("WebSocket stream of identity.enrolled, identity.verified and attendance.marked events. Pass ?events=a,b to subscribe to a subset."),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{Status: "ok"}, "200", "Service is up"),
			}),
		),

		// GET /ready
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Checks that the gallery storage is reachable"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable", Gallery: "unreachable"}, "503", "Gallery storage unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
