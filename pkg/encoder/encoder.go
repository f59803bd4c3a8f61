package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/rock-classifier/pkg/types"
)

// MimeType of every payload produced by the encoder.
const MimeType = "image/jpeg"

// Encoder re-compresses a bitmap as JPEG and wraps it in standard base64.
type Encoder struct {
	config Config
}

// Config holds configuration for the encoder
type Config struct {
	// Quality is the JPEG quality (1-100).
	Quality int
	// MaxDimension caps the long edge in pixels; 0 keeps the original size.
	MaxDimension int
}

// DefaultConfig returns quality 75 without resizing.
func DefaultConfig() Config {
	return Config{Quality: 75}
}

// New creates a new Encoder with default configuration
func New() *Encoder {
	return &Encoder{config: DefaultConfig()}
}

// NewWithConfig creates a new Encoder with custom configuration
func NewWithConfig(config Config) *Encoder {
	if config.Quality < 1 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Encoder{config: config}
}

// Encode returns the base64 text of img re-encoded as JPEG.
// The output is deterministic for a given bitmap and configuration.
func (e *Encoder) Encode(img image.Image) (string, error) {
	data, err := e.EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeJPEG returns the raw JPEG bytes that Encode wraps.
func (e *Encoder) EncodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, types.NewEncodingError("jpeg", errors.New("nil image"))
	}
	if img.Bounds().Empty() {
		return nil, types.NewEncodingError("jpeg", fmt.Errorf("empty image bounds %v", img.Bounds()))
	}

	img = e.resize(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.config.Quality)); err != nil {
		return nil, types.NewEncodingError("jpeg", err)
	}
	return buf.Bytes(), nil
}

func (e *Encoder) resize(img image.Image) image.Image {
	maxDim := e.config.MaxDimension
	if maxDim <= 0 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}
