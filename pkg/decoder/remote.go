package decoder

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/rock-classifier/pkg/types"
)

const (
	fetchTimeout  = 30 * time.Second
	userAgent     = "Rock-Classifier/1.0"
	maxFetchBytes = 50 << 20
)

// LoadImageFromURL downloads an image over http(s) and decodes it.
// Download failures are DecodeErrors as well: the photo never became a bitmap.
func (d *Decoder) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, types.NewDecodeError("fetch", fmt.Errorf("invalid URL: %w", err))
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, types.NewDecodeError("fetch", fmt.Errorf("unsupported URL scheme: %q (only http and https are supported)", parsedURL.Scheme))
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, types.NewDecodeError("fetch", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, types.NewDecodeError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewDecodeError("fetch", fmt.Errorf("HTTP %s", resp.Status))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, types.NewDecodeError("fetch", fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType))
	}

	return d.LoadImageFromReader(io.LimitReader(resp.Body, maxFetchBytes))
}

// LoadImageSmart loads an image from either a file path or an http(s) URL.
func (d *Decoder) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return d.LoadImageFromURL(ctx, source)
	}
	return d.LoadImage(source)
}
