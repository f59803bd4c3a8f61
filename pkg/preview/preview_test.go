package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"strings"
	"testing"

	xwebp "golang.org/x/image/webp"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	return img
}

func decodeURI(t *testing.T, uri string) image.Image {
	t.Helper()
	const prefix = "data:image/webp;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("unexpected data URI prefix: %.40s", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := xwebp.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("invalid webp: %v", err)
	}
	return img
}

func TestRenderScalesDown(t *testing.T) {
	uri, err := New().Render(createTestImage(960, 480))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img := decodeURI(t, uri)
	if img.Bounds().Dx() != 480 || img.Bounds().Dy() != 240 {
		t.Errorf("Expected 480x240, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestRenderKeepsSmallImages(t *testing.T) {
	uri, err := New().Render(createTestImage(10, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img := decodeURI(t, uri)
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 10 {
		t.Errorf("Expected 10x10, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestRenderPortrait(t *testing.T) {
	r := &Renderer{MaxDimension: 100, Quality: 50}
	img := r.scale(createTestImage(50, 400))
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 100 {
		t.Errorf("Expected 12x100, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestRenderRejectsEmpty(t *testing.T) {
	if _, err := New().Render(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected an error for an empty image")
	}
}
