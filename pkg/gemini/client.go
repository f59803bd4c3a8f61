package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/encoder"
	"github.com/menta2k/rock-classifier/pkg/types"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.5-flash-preview-09-2025"

	// maxErrorBody caps how much of a failed response is kept for display.
	maxErrorBody = 8 << 10
)

// Config configures the Gemini client. APIKey is required.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	// Timeout bounds a single call when the caller's context has no deadline; 0 leaves it to the transport.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateContentRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls the generateContent endpoint of the Gemini API.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ client.Classifier = (*Client)(nil)

// NewClient validates cfg and fills in defaults. A missing key is a ConfigError.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewConfigError("gemini", errors.New("API key is not set"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}, nil
}

func (c *Client) Name() string {
	return "Gemini"
}

func (c *Client) Model() string {
	return c.model
}

// Classify issues exactly one generateContent call. There is no retry.
func (c *Client) Classify(ctx context.Context, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqBody := generateContentRequest{
		Contents: []content{
			{
				Parts: []part{
					{Text: client.RockPrompt},
					{InlineData: &inlineData{MimeType: encoder.MimeType, Data: imgB64}},
				},
			},
		},
		SystemInstruction: &content{
			Parts: []part{{Text: client.SystemInstruction}},
		},
	}

	respBody, err := c.sendRequest(ctx, reqBody)
	if err != nil {
		return "", err
	}

	return extractText(respBody)
}

func (c *Client) sendRequest(ctx context.Context, payload generateContentRequest) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewEncodingError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.apiKey), bytes.NewReader(jsonData))
	if err != nil {
		return nil, types.NewTransportError("create request", 0, "", c.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewTransportError("send request", 0, "", c.redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransportError("read response", resp.StatusCode, truncate(body), c.redact(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewTransportError("generateContent", resp.StatusCode, truncate(body),
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	return body, nil
}

// extractText reads candidates[0].content.parts[0].text.
func extractText(body []byte) (string, error) {
	var gr generateContentResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", types.NewStructuralError("decode response", err)
	}
	if len(gr.Candidates) == 0 {
		return "", types.NewStructuralError("decode response", errors.New("no candidates in response"))
	}
	parts := gr.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", types.NewStructuralError("decode response", errors.New("no parts in first candidate"))
	}
	if parts[0].Text == nil || *parts[0].Text == "" {
		return "", types.NewStructuralError("decode response", errors.New("first part has no text"))
	}
	return *parts[0].Text, nil
}

func (c *Client) endpoint(key string) string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL, c.apiVersion, c.model, url.QueryEscape(key))
}

// redact keeps the credential out of error strings produced by net/http.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: c.endpoint("REDACTED"), Err: urlErr.Err}
	}
	msg := err.Error()
	if !strings.Contains(msg, c.apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, c.apiKey, "REDACTED"))
}

func truncate(body []byte) string {
	return types.TruncateBody(body, maxErrorBody)
}
