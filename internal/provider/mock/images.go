package mock

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
)

// FaceImage returns a PNG of seeded noise. The mock provider finds one
// face in it, and the same seed always produces the same embedding.
func FaceImage(seed int64) []byte {
	return noise(seed, 48, 48)
}

// GroupImage returns a wide PNG in which the mock provider finds two faces.
func GroupImage(seed int64) []byte {
	return noise(seed, 96, 32)
}

// BlankImage returns a single-color PNG with no face in it.
func BlankImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return encode(img)
}

func noise(seed int64, w, h int) []byte {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return encode(img)
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
