package replicate

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

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Prediction lifecycle states reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API. Predictions
// are asynchronous: creation returns a handle whose status is polled.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Input is the model input payload for one prediction.
type Input struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Image          string  `json:"image,omitempty"`
	PromptStrength float64 `json:"prompt_strength,omitempty"`
}

// PredictionRequest names the model and carries its input.
type PredictionRequest struct {
	Model string
	Input Input
}

// Prediction is the normalized API response.
type Prediction struct {
	ID     string
	Status string
	Output []string
	Error  string
}

type predictionPayload struct {
	Version string `json:"version,omitempty"`
	Input   Input  `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
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
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether an API token is configured.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// CreatePrediction submits a new prediction for the given model and returns
// the handle to poll.
func (c *Client) CreatePrediction(ctx context.Context, req PredictionRequest) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, fmt.Errorf("replicate: model is required")
	}

	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)
	payload := predictionPayload{Input: req.Input}
	prediction, err := c.invoke(ctx, http.MethodPost, endpoint, &payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("prediction_id", prediction.ID).
		Str("status", prediction.Status).
		Str("model", model).
		Msg("replicate: prediction created")

	return prediction, nil
}

// GetPrediction fetches the current state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("replicate: prediction id is required")
	}
	endpoint := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(id))
	return c.invoke(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) invoke(ctx context.Context, method, endpoint string, payload any) (*Prediction, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("replicate: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("replicate: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: invoke api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil {
			msg := apiErr.Detail
			if msg == "" {
				msg = apiErr.Title
			}
			if msg != "" {
				return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("replicate: status %d", resp.StatusCode)
	}

	var decoded predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return normalize(decoded), nil
}

// normalize flattens the polymorphic output field: models return either a
// single URL string or a list of URLs.
func normalize(resp predictionResponse) *Prediction {
	p := &Prediction{ID: resp.ID, Status: resp.Status, Error: resp.Error}
	if len(resp.Output) == 0 {
		return p
	}
	var single string
	if err := json.Unmarshal(resp.Output, &single); err == nil {
		if single != "" {
			p.Output = []string{single}
		}
		return p
	}
	var many []string
	if err := json.Unmarshal(resp.Output, &many); err == nil {
		p.Output = many
	}
	return p
}
