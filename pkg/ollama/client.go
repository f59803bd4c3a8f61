package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/types"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

var _ client.Classifier = (*Client)(nil)

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, timeout time.Duration) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, types.NewConfigError("ollama", fmt.Errorf("invalid URL: %w", err))
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, types.NewConfigError("ollama", fmt.Errorf("invalid URL: %q", ollamaURL))
	}

	// Drop any path such as /api/chat; the SDK appends its own.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *Client) Name() string {
	return "Ollama"
}

func (c *Client) Model() string {
	return c.model
}

// Classify sends the rock prompt and image in a single non-streaming chat call.
func (c *Client) Classify(ctx context.Context, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// The SDK takes raw bytes and does its own encoding
	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", types.NewEncodingError("decode base64 image", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "system",
				Content: client.SystemInstruction,
			},
			{
				Role:    "user",
				Content: client.RockPrompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return "", types.NewTransportError("chat", statusErr.StatusCode, statusErr.ErrorMessage, err)
		}
		return "", types.NewTransportError("chat", 0, "", err)
	}

	if strings.TrimSpace(responseContent.String()) == "" {
		return "", types.NewStructuralError("chat", errors.New("empty response from ollama"))
	}

	return responseContent.String(), nil
}
