// Package imagesource turns the image field of a request into raw image
// bytes the face provider can read.
package imagesource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const (
	DefaultMaxBytes     = 50 << 20
	DefaultFetchTimeout = 30 * time.Second
)

// Source resolves image references. Accepted forms are a data URL
// (data:image/<type>;base64,<payload>), bare base64, and a blob:, http:
// or https: URL that is fetched.
type Source struct {
	client   *http.Client
	maxBytes int64
	maxSide  int
}

type Option func(*Source)

// WithHTTPClient replaces the client used to fetch image URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithMaxBytes caps both decoded and fetched payloads.
func WithMaxBytes(n int64) Option {
	return func(s *Source) { s.maxBytes = n }
}

// WithMaxSide downscales images whose width or height exceeds n pixels.
// Zero keeps images at their original size.
func WithMaxSide(n int) Option {
	return func(s *Source) { s.maxSide = n }
}

func New(opts ...Option) *Source {
	s := &Source{
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns validated image bytes for ref. Anything that does not
// yield a decodable JPEG, PNG, GIF, WebP or BMP image is
// domain.ErrInvalidImage.
func (s *Source) Resolve(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image is empty"))
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "blob:"):
		data, err = s.fetch(ctx, strings.TrimPrefix(ref, "blob:"))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err = s.fetch(ctx, ref)
	case strings.HasPrefix(ref, "data:"):
		data, err = s.decodeDataURL(ref)
	default:
		data, err = s.decodeBase64(ref)
	}
	if err != nil {
		return nil, err
	}

	return Normalize(data, s.maxSide)
}

func (s *Source) decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("data URL has no payload"))
	}
	mediaType, encoding, _ := strings.Cut(meta, ";")
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("data URL media type %q is not an image", mediaType))
	}
	if encoding != "base64" {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("data URL must be base64 encoded"))
	}
	return s.decodeBase64(payload)
}

func (s *Source) decodeBase64(payload string) ([]byte, error) {
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image larger than %d bytes", s.maxBytes))
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(payload); err == nil {
			return data, nil
		}
	}
	return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image is not valid base64"))
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("build image request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("fetch image: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("fetch image: status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("read image: %w", err))
	}
	if int64(len(data)) > s.maxBytes {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image larger than %d bytes", s.maxBytes))
	}
	return data, nil
}
