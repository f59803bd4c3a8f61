package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/encoder"
	"github.com/menta2k/rock-classifier/pkg/types"
)

const (
	DefaultURL   = "http://localhost:8080"
	DefaultModel = "openbmb/minicpm-v4.5"

	maxErrorBody = 8 << 10
)

type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ client.Classifier = (*Client)(nil)

// OpenAI-compatible message format
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // Can be string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

func NewClient(serverURL, model string, timeout time.Duration) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

func (c *Client) Name() string {
	return "llama.cpp"
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Classify(ctx context.Context, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "system",
				Content: client.SystemInstruction,
			},
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: client.RockPrompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: "data:" + encoder.MimeType + ";base64," + imgB64}},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
		Stream:      false,
	}

	respBody, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", types.NewStructuralError("decode response", err)
	}

	if len(resp.Choices) == 0 {
		return "", types.NewStructuralError("decode response", errors.New("no choices in response"))
	}

	// Extract text from the response (handle both string and array formats)
	switch content := resp.Choices[0].Message.Content.(type) {
	case string:
		if content != "" {
			return content, nil
		}
	case []interface{}:
		for _, item := range content {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text, nil
				}
			}
		}
	}

	return "", types.NewStructuralError("decode response", errors.New("no text content in response"))
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewEncodingError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, types.NewTransportError("create request", 0, "", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewTransportError("send request", 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError("read response", resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewTransportError("chat completion", resp.StatusCode, types.TruncateBody(body, maxErrorBody),
			fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	return body, nil
}
