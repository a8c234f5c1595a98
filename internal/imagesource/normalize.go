package imagesource

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

const jpegQuality = 90

// Format reports the registered image format of data.
func Format(data []byte) (string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", image.Config{}, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image header: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", image.Config{}, domain.ErrInvalidImage.WithError(fmt.Errorf("image has no pixels"))
	}
	return format, cfg, nil
}

// Normalize validates data and, when maxSide is positive and the image
// is larger, returns a JPEG scaled to fit within maxSide x maxSide.
// Images already within bounds are returned unchanged.
func Normalize(data []byte, maxSide int) ([]byte, error) {
	_, cfg, err := Format(data)
	if err != nil {
		return nil, err
	}
	if maxSide <= 0 || (cfg.Width <= maxSide && cfg.Height <= maxSide) {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image: %w", err))
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSide
		newHeight = max(1, int(float64(height)*float64(maxSide)/float64(width)))
	} else {
		newHeight = maxSide
		newWidth = max(1, int(float64(width)*float64(maxSide)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
