package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readyTimeout = 2 * time.Second

// Version is reported by /health.
var Version = "0.1.0"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderStatus reports whether the embedding backend has initialized.
type ProviderStatus interface {
	Ready() bool
}

type HealthHandler struct {
	gallery  Pinger
	provider ProviderStatus
	logger   *slog.Logger
}

func NewHealthHandler(gallery Pinger, provider ProviderStatus, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{gallery: gallery, provider: provider, logger: logger}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Gallery  string `json:"gallery,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready fails with 503 when the gallery storage cannot be reached. The
// provider initializes lazily on first use, so its state is informational.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "ready", Gallery: "ok"}

	if h.provider != nil {
		resp.Provider = "pending"
		if h.provider.Ready() {
			resp.Provider = "ready"
		}
	}

	if h.gallery != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()

		if err := h.gallery.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", slog.Any("error", err))
			resp.Status = "unavailable"
			resp.Gallery = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
	}

	return c.JSON(resp)
}
