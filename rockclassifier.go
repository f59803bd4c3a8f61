// Package rockclassifier identifies rocks and minerals in photographs using
// multimodal vision models.
//
// An uploaded photo goes through three stages:
//
//  1. Decode (pkg/decoder): bytes to bitmap; JPEG and PNG only.
//  2. Encode (pkg/encoder): bitmap re-compressed as JPEG and base64 encoded.
//  3. Classify (pkg/client implementations): one request to a vision backend
//     (Gemini by default, or a local Ollama / llama.cpp server) asking for rock
//     name, rock type, description and confidence in a Korean Markdown template.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		rockclassifier "github.com/menta2k/rock-classifier"
//		"github.com/menta2k/rock-classifier/pkg/gemini"
//	)
//
//	func main() {
//		backend, err := gemini.NewClient(gemini.Config{APIKey: os.Getenv("GEMINI_API_KEY")})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		f, err := os.Open("rock.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer f.Close()
//
//		result, err := rockclassifier.New(backend).ClassifyReader(context.Background(), f)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(result.Text)
//	}
//
// Each stage fails with its own error kind (see pkg/types): DecodeError,
// EncodingError, TransportError or StructuralError. A failed stage stops the
// flow; later stages never run. Nothing is retried or cached.
package rockclassifier

import (
	"context"
	"image"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/decoder"
	"github.com/menta2k/rock-classifier/pkg/encoder"
	"github.com/menta2k/rock-classifier/pkg/types"
)

// Version of the rock classifier
const Version = "1.0.0"

// ImageDecoder turns an upload into a bitmap.
type ImageDecoder interface {
	LoadImageFromReader(r io.Reader) (image.Image, error)
}

// ImageEncoder turns a bitmap into the transport payload.
type ImageEncoder interface {
	Encode(img image.Image) (string, error)
}

// RockClassifier runs the decode, encode and classify stages for one photo at a time.
// It keeps no per-request state, so one value can serve concurrent requests.
type RockClassifier struct {
	decoder ImageDecoder
	encoder ImageEncoder
	client  client.Classifier
	log     *zap.Logger
}

// New creates a RockClassifier with default decoder and encoder settings
func New(c client.Classifier) *RockClassifier {
	return NewWithComponents(decoder.New(), encoder.New(), c, zap.NewNop())
}

// NewWithConfig creates a RockClassifier with custom decoder and encoder settings
func NewWithConfig(decoderConfig decoder.Config, encoderConfig encoder.Config, c client.Classifier, log *zap.Logger) *RockClassifier {
	return NewWithComponents(decoder.NewWithConfig(decoderConfig), encoder.NewWithConfig(encoderConfig), c, log)
}

// NewWithComponents wires arbitrary stage implementations together.
func NewWithComponents(d ImageDecoder, e ImageEncoder, c client.Classifier, log *zap.Logger) *RockClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &RockClassifier{
		decoder: d,
		encoder: e,
		client:  c,
		log:     log,
	}
}

// Backend returns the classifier backing this instance.
func (rc *RockClassifier) Backend() client.Classifier {
	return rc.client
}

// Decode reads an uploaded image.
func (rc *RockClassifier) Decode(r io.Reader) (image.Image, error) {
	return rc.decoder.LoadImageFromReader(r)
}

// Encode converts a decoded image to the base64 JPEG payload.
func (rc *RockClassifier) Encode(img image.Image) (string, error) {
	return rc.encoder.Encode(img)
}

// Classify sends an encoded payload to the backend. The call blocks until the
// backend answers or fails.
func (rc *RockClassifier) Classify(ctx context.Context, imgB64 string) (*types.ClassificationResult, error) {
	start := time.Now()
	text, err := rc.client.Classify(ctx, imgB64)
	elapsed := time.Since(start)
	// failures are reported by the caller
	if err != nil {
		return nil, err
	}

	rc.log.Debug("Classification succeeded",
		zap.String("backend", rc.client.Name()),
		zap.String("model", rc.client.Model()),
		zap.Int("chars", len(text)),
		zap.Duration("duration", elapsed))

	return &types.ClassificationResult{
		Text:     text,
		Backend:  rc.client.Name(),
		Model:    rc.client.Model(),
		Duration: elapsed,
	}, nil
}

// ClassifyImage encodes img and classifies it.
func (rc *RockClassifier) ClassifyImage(ctx context.Context, img image.Image) (*types.ClassificationResult, error) {
	imgB64, err := rc.Encode(img)
	if err != nil {
		return nil, err
	}
	return rc.Classify(ctx, imgB64)
}

// ClassifyReader runs the whole flow for one upload: decode, encode, classify.
func (rc *RockClassifier) ClassifyReader(ctx context.Context, r io.Reader) (*types.ClassificationResult, error) {
	img, err := rc.Decode(r)
	if err != nil {
		return nil, err
	}
	return rc.ClassifyImage(ctx, img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
