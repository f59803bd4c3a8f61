package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension = 480
	DefaultQuality      = 80
)

// Renderer produces the small preview of an uploaded photo shown next to the result.
type Renderer struct {
	MaxDimension int
	Quality      float32
}

// New creates a Renderer with default settings
func New() *Renderer {
	return &Renderer{MaxDimension: DefaultMaxDimension, Quality: DefaultQuality}
}

// Render returns img as a lossy WebP data URI, scaled down to MaxDimension.
func (r *Renderer) Render(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", errors.New("preview: empty image")
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, r.scale(img), &webp.Options{Quality: r.Quality}); err != nil {
		return "", fmt.Errorf("preview: webp encode: %w", err)
	}
	return "data:image/webp;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *Renderer) scale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if r.MaxDimension <= 0 || (w <= r.MaxDimension && h <= r.MaxDimension) {
		return img
	}

	if w >= h {
		h = max(1, h*r.MaxDimension/w)
		w = r.MaxDimension
	} else {
		w = max(1, w*r.MaxDimension/h)
		h = r.MaxDimension
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
