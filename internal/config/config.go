package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	GalleryBackendFile     = "file"
	GalleryBackendPostgres = "postgres"

	MatcherLinear = "linear"
	MatcherHNSW   = "hnsw"
)

type Config struct {
	// Server
	Port           int           `envconfig:"PORT" default:"3001"`
	Environment    string        `envconfig:"ENV" default:"development"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10m"`
	BodyLimitMB    int           `envconfig:"BODY_LIMIT_MB" default:"50"`
	StaticDir      string        `envconfig:"STATIC_DIR" default:"./public"`

	// Gallery
	GalleryBackend string `envconfig:"GALLERY_BACKEND" default:"file"`
	GalleryDir     string `envconfig:"GALLERY_DIR" default:"./data"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	EmbeddingDim   int    `envconfig:"EMBEDDING_DIM" default:"128"`

	// Matching
	MatchThreshold float64 `envconfig:"MATCH_THRESHOLD" default:"0.6"`
	Matcher        string  `envconfig:"MATCHER" default:"linear"`
	HNSWMinSize    int     `envconfig:"HNSW_MIN_SIZE" default:"1000"`
	HNSWCandidates int     `envconfig:"HNSW_CANDIDATES" default:"64"`

	// Attendance
	AttendanceDir  string `envconfig:"ATTENDANCE_DIR" default:"./attendance"`
	AutoAttendance bool   `envconfig:"AUTO_ATTENDANCE" default:"false"`

	// Provider
	ProviderType     string        `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DeepFaceURL      string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string        `envconfig:"DEEPFACE_MODEL" default:"Facenet"`
	DeepFaceDetector string        `envconfig:"DEEPFACE_DETECTOR" default:"ssd"`
	ProviderTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`

	// Images larger than this on either side are downscaled before detection. 0 keeps them as sent.
	ImageMaxSide int `envconfig:"IMAGE_MAX_SIDE" default:"1280"`

	// Outbound event webhook, disabled when WEBHOOK_URL is empty
	WebhookURL         string        `envconfig:"WEBHOOK_URL"`
	WebhookSecret      string        `envconfig:"WEBHOOK_SECRET"`
	WebhookEvents      []string      `envconfig:"WEBHOOK_EVENTS" default:"attendance.marked"`
	WebhookMaxAttempts int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
	WebhookTimeout     time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`

	// Rate limiting
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"120"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.GalleryBackend {
	case GalleryBackendFile:
		if c.GalleryDir == "" {
			errs = append(errs, errors.New("GALLERY_DIR is required for the file gallery"))
		}
		if c.AttendanceDir == "" {
			errs = append(errs, errors.New("ATTENDANCE_DIR is required for the file gallery"))
		}
	case GalleryBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres gallery"))
		}
	default:
		errs = append(errs, fmt.Errorf("GALLERY_BACKEND %q is not one of %s, %s",
			c.GalleryBackend, GalleryBackendFile, GalleryBackendPostgres))
	}

	switch c.Matcher {
	case MatcherLinear, MatcherHNSW:
	default:
		errs = append(errs, fmt.Errorf("MATCHER %q is not one of %s, %s", c.Matcher, MatcherLinear, MatcherHNSW))
	}

	if c.MatchThreshold < 0 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must not be negative, got %v", c.MatchThreshold))
	}
	if c.EmbeddingDim < 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must not be negative, got %d", c.EmbeddingDim))
	}
	if c.BodyLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT_MB must be positive, got %d", c.BodyLimitMB))
	}
	if c.ImageMaxSide < 0 {
		errs = append(errs, fmt.Errorf("IMAGE_MAX_SIDE must not be negative, got %d", c.ImageMaxSide))
	}

	if c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("WEBHOOK_URL %q is not an http(s) URL", c.WebhookURL))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
