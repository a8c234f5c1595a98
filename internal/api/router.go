package api

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/ws"
)

type Dependencies struct {
	Service  handler.RecognitionService
	Images   handler.ImageResolver
	Gallery  handler.Pinger
	Provider handler.ProviderStatus
	// Events enables the /ws live feed when set.
	Events *ws.Hub
}

type Router struct {
	app         *fiber.App
	cfg         *config.Config
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Rollcall API",
		BodyLimit:    cfg.BodyLimitMB << 20,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	})

	return &Router{
		app:    app,
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(middleware.RequestInfo())
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	sw := docs.NewSwagger("localhost:" + strconv.Itoa(r.cfg.Port))
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var gallery handler.Pinger
	var provider handler.ProviderStatus
	if r.deps != nil {
		gallery = r.deps.Gallery
		provider = r.deps.Provider
	}
	healthHandler := handler.NewHealthHandler(gallery, provider, r.logger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps != nil {
		// Recognition runs the embedding model, so it is limited per client
		r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Max:    r.cfg.RateLimitMax,
			Window: r.cfg.RateLimitWindow,
		})
		limit := r.rateLimiter.Handler()

		h := handler.NewRecognitionHandler(r.deps.Service, r.deps.Images, r.logger)

		r.app.Post("/enrollnew", limit, h.Enroll)
		r.app.Post("/verify", limit, h.Verify)
		r.app.Post("/save-employee", h.SaveEmployee)
		r.app.Post("/mark-attendance", h.MarkAttendance)
		r.app.Get("/get-employee-descriptors", h.ListDescriptors)
		r.app.Post("/helloworld", h.Hello)

		if r.deps.Events != nil {
			r.app.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Events))
		}
	}

	// Static frontend last so API routes win
	if dir := r.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.app.Static("/", dir)
		} else {
			r.logger.Info("static directory not found, not serving frontend", slog.String("dir", dir))
		}
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
