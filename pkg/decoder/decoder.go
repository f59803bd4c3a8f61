package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/rock-classifier/pkg/types"
)

// Decoder turns uploaded bytes into an in-memory bitmap.
type Decoder struct {
	config Config
}

// Config holds configuration for the decoder
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	// MaxPixels bounds width*height read from the header before the full decode.
	MaxPixels int
}

// DefaultConfig accepts JPEG and PNG up to 40 megapixels.
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png"},
		MinImageSize:     1,
		MaxPixels:        40_000_000,
	}
}

// New creates a new Decoder with default configuration
func New() *Decoder {
	return &Decoder{config: DefaultConfig()}
}

// NewWithConfig creates a new Decoder with custom configuration
func NewWithConfig(config Config) *Decoder {
	return &Decoder{config: config}
}

// LoadImage loads an image from file
func (d *Decoder) LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, types.NewDecodeError("open", err)
	}
	defer file.Close()

	return d.LoadImageFromReader(file)
}

// LoadImageFromReader decodes an image from an io.Reader. Every failure is a DecodeError.
func (d *Decoder) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	img, _, err := d.decode(reader)
	return img, err
}

// LoadImageWithInfo decodes an image and reports its dimensions and source format.
func (d *Decoder) LoadImageWithInfo(reader io.Reader) (image.Image, types.ImageInfo, error) {
	img, format, err := d.decode(reader)
	if err != nil {
		return nil, types.ImageInfo{}, err
	}
	info := d.GetImageInfo(img)
	info.Format = format
	return img, info, nil
}

func (d *Decoder) decode(reader io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", types.NewDecodeError("read", err)
	}
	if len(data) == 0 {
		return nil, "", types.NewDecodeError("read", errors.New("empty upload"))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", types.NewDecodeError("header", err)
	}
	if !d.isFormatSupported(format) {
		return nil, "", types.NewDecodeError("header", fmt.Errorf("unsupported image format: %s", format))
	}
	if d.config.MaxPixels > 0 && cfg.Width*cfg.Height > d.config.MaxPixels {
		return nil, "", types.NewDecodeError("header", fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", types.NewDecodeError("decode", err)
	}

	if err := d.ValidateImage(img); err != nil {
		return nil, "", err
	}

	return img, format, nil
}

// GetImageInfo returns basic information about an image
func (d *Decoder) GetImageInfo(img image.Image) types.ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := types.ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ValidateImage checks if an image meets minimum requirements
func (d *Decoder) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < d.config.MinImageSize || bounds.Dy() < d.config.MinImageSize {
		return types.NewDecodeError("validate", fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), d.config.MinImageSize))
	}
	return nil
}

func (d *Decoder) isFormatSupported(format string) bool {
	format = normalizeFormat(format)
	for _, supported := range d.config.SupportedFormats {
		if strings.EqualFold(format, normalizeFormat(supported)) {
			return true
		}
	}
	return false
}

// normalizeFormat maps file-extension spellings onto image.DecodeConfig format names.
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "jpg" {
		return "jpeg"
	}
	return format
}
