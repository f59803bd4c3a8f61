package client

import (
	"context"
)

// Classifier sends one base64 JPEG to a vision backend and returns the raw answer text.
// Implementations hold no per-call state and may be shared across requests.
type Classifier interface {
	Classify(ctx context.Context, imgB64 string) (string, error)
	// Name is a short backend label used in logs, metrics and messages.
	Name() string
	// Model is the model identifier requested from the backend.
	Model() string
}
