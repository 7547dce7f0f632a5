package stability

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

	"github.com/rs/zerolog"

	"timelens/internal/infra"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("stability: api key is required")

// Options configures the Stability client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Stability generation API. Generation is
// synchronous: the response carries the finished output.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerateRequest captures the inputs for one generation.
type GenerateRequest struct {
	Engine         string
	Prompt         string
	NegativePrompt string
	InitImageURL   string
	ImageStrength  float64
	RequestID      string
}

// GenerateResult is the normalized API response.
type GenerateResult struct {
	OutputURL    string
	Format       string
	FinishReason string
}

type generationPayload struct {
	TextPrompts   []textPrompt `json:"text_prompts"`
	InitImageURL  string       `json:"init_image_url,omitempty"`
	ImageStrength float64      `json:"image_strength,omitempty"`
	OutputFormat  string       `json:"output_format"`
	ClientID      string       `json:"client_id,omitempty"`
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generationResponse struct {
	Artifacts []struct {
		URL          string `json:"url"`
		FinishReason string `json:"finish_reason"`
	} `json:"artifacts"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stability.ai"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate runs one synchronous generation and returns the hosted output.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	engine := strings.TrimSpace(req.Engine)
	if engine == "" {
		engine = "stable-diffusion-xl-1024-v1-0"
	}

	payload := generationPayload{
		TextPrompts:  []textPrompt{{Text: req.Prompt, Weight: 1}},
		OutputFormat: "png",
		ClientID:     req.RequestID,
	}
	if strings.TrimSpace(req.NegativePrompt) != "" {
		payload.TextPrompts = append(payload.TextPrompts, textPrompt{Text: req.NegativePrompt, Weight: -1})
	}
	if req.InitImageURL != "" {
		payload.InitImageURL = req.InitImageURL
		payload.ImageStrength = req.ImageStrength
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("stability: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/generation/%s/generate", c.baseURL, url.PathEscape(engine))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stability: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stability: invoke api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("stability: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("stability: status %d", resp.StatusCode)
	}

	var decoded generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("stability: decode response: %w", err)
	}
	if len(decoded.Artifacts) == 0 || decoded.Artifacts[0].URL == "" {
		return nil, fmt.Errorf("stability: no artifact returned")
	}

	artifact := decoded.Artifacts[0]
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("engine", engine).
		Msg("stability: generation completed")

	return &GenerateResult{
		OutputURL:    artifact.URL,
		Format:       "image/png",
		FinishReason: artifact.FinishReason,
	}, nil
}
