// Package generation talks to the remote image generation API: submit a
// job, poll it until it settles, then download the sample.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sealtrail/internal/config"
	"sealtrail/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

const (
	generationsPath     = "/v1/images/generations"
	defaultMaxImageSize = 32 << 20

	statusReady = "Ready"

	// DefaultBaseImageStrength is how strongly a base image steers a variation.
	DefaultBaseImageStrength = 0.5
)

var errNotReady = errors.New("generation not ready")

// failedStatuses are the terminal states of a job that will never produce
// a sample.
var failedStatuses = map[string]struct{}{
	"Failed":            {},
	"Error":             {},
	"Content Moderated": {},
	"Request Moderated": {},
	"Task not found":    {},
}

type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	maxImageSize int64
}

type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
	MaxImageSize int64
}

func New(baseURL, apiKey string, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultGenerationTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = defaultMaxImageSize
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   opts.HTTPClient,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		maxImageSize: opts.MaxImageSize,
	}
}

func NewFromConfig(cfg config.Config) (*Client, error) {
	if cfg.TogetherAPIKey == "" {
		return nil, errors.New("TOGETHER_API_KEY is required")
	}
	return New(cfg.GenerationBaseURL, cfg.TogetherAPIKey, Options{
		PollInterval: cfg.GenerationPollInterval,
		Timeout:      cfg.GenerationTimeout,
	}), nil
}

type submitRequest struct {
	Model               string  `json:"model"`
	Prompt              string  `json:"prompt"`
	Steps               int     `json:"steps"`
	Seed                int64   `json:"seed"`
	Width               int     `json:"width,omitempty"`
	Height              int     `json:"height,omitempty"`
	ImagePrompt         string  `json:"image_prompt,omitempty"`
	ImagePromptStrength float64 `json:"image_prompt_strength,omitempty"`
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type pollResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// Generate runs one job to completion. Failures reported by the remote
// side wrap domain.ErrGenerationFailed; running out of time wraps
// domain.ErrGenerationTimeout.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedArtifact, error) {
	if c == nil || c.baseURL == "" || c.apiKey == "" {
		return domain.GeneratedArtifact{}, fmt.Errorf("%w: generation client not configured", domain.ErrGenerationFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := submitRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Steps:  req.Steps,
		Seed:   req.Seed,
		Width:  req.Width,
		Height: req.Height,
	}
	if len(req.BaseImage) > 0 {
		payload.ImagePrompt = base64.StdEncoding.EncodeToString(req.BaseImage)
		payload.ImagePromptStrength = req.BaseImageStrength
	}

	var submitted submitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+generationsPath, payload, &submitted); err != nil {
		return domain.GeneratedArtifact{}, classify(err)
	}
	if submitted.PollingURL == "" {
		return domain.GeneratedArtifact{}, fmt.Errorf("%w: no polling url", domain.ErrGenerationFailed)
	}

	pollOnce := func() (pollResponse, error) {
		var out pollResponse
		if err := c.doJSON(ctx, http.MethodGet, submitted.PollingURL, nil, &out); err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests {
				return out, backoff.Permanent(err)
			}
			return out, err
		}
		if out.Status == statusReady {
			return out, nil
		}
		if _, failed := failedStatuses[out.Status]; failed {
			return out, backoff.Permanent(fmt.Errorf("%w: status %s", domain.ErrGenerationFailed, out.Status))
		}
		return out, errNotReady
	}
	ready, err := backoff.Retry(ctx, pollOnce,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxElapsedTime(c.timeout),
	)
	if err != nil {
		return domain.GeneratedArtifact{}, classify(err)
	}
	if ready.Result.Sample == "" {
		return domain.GeneratedArtifact{}, fmt.Errorf("%w: ready without sample", domain.ErrGenerationFailed)
	}

	image, err := c.download(ctx, ready.Result.Sample)
	if err != nil {
		return domain.GeneratedArtifact{}, classify(err)
	}
	jobID := ready.ID
	if jobID == "" {
		jobID = submitted.ID
	}
	return domain.GeneratedArtifact{
		Bytes:     image,
		SourceURL: ready.Result.Sample,
		JobID:     jobID,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: truncate(string(respBody), 256)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGenerationFailed, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrGenerationFailed, c.maxImageSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrGenerationFailed)
	}
	return data, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("generation api status %d", e.code)
	}
	return fmt.Sprintf("generation api status %d: %s", e.code, e.body)
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrGenerationFailed), errors.Is(err, domain.ErrGenerationTimeout):
		return err
	case errors.Is(err, errNotReady), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrGenerationTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
