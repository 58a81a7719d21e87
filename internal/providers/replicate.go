package providers

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

	"github.com/avast/retry-go/v4"
)

const (
	ReplicateName           = "replicate"
	replicateDefaultBaseURL = "https://api.replicate.com/v1"
)

// ReplicateConfig holds configuration for the Replicate client.
type ReplicateConfig struct {
	APIKey     string
	BaseURL    string        // Optional (tests)
	RateLimit  int           // Requests per minute
	MaxRetries int           // Attempts per request, including the first
	RetryDelay time.Duration // Base delay for exponential backoff
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// ReplicateClient implements JobClient against the Replicate predictions API.
type ReplicateClient struct {
	apiKey     string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	limiter    *RateLimiter
}

// NewReplicateClient creates a new Replicate client.
func NewReplicateClient(cfg ReplicateConfig) *ReplicateClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = replicateDefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ReplicateClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     httpClient,
		limiter:    NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the backend identifier.
func (c *ReplicateClient) Name() string {
	return ReplicateName
}

// RateLimiterStatus reports the client's limiter state.
func (c *ReplicateClient) RateLimiterStatus() RateLimiterStatus {
	return c.limiter.Status()
}

// Submit creates a prediction. Models are addressed as "owner/name"; a pinned
// version may be given as "owner/name:version".
//
// Only 429 responses are retried: a create that failed server-side may still
// have started a prediction.
func (c *ReplicateClient) Submit(ctx context.Context, model string, input map[string]any) (*Job, error) {
	if c.apiKey == "" {
		return nil, &AuthError{Backend: ReplicateName}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	path := "/models/" + model + "/predictions"
	body := map[string]any{"input": input}
	if name, ver, ok := strings.Cut(model, ":"); ok {
		path = "/predictions"
		body["version"] = ver
		model = name
	}

	job, err := c.do(ctx, http.MethodPost, path, body, IsRateLimited)
	if err != nil {
		return nil, err
	}
	if job.Model == "" {
		job.Model = model
	}
	return job, nil
}

// Get fetches a prediction by ID.
func (c *ReplicateClient) Get(ctx context.Context, id string) (*Job, error) {
	if c.apiKey == "" {
		return nil, &AuthError{Backend: ReplicateName}
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("job id is required")
	}
	return c.do(ctx, http.MethodGet, "/predictions/"+id, nil, isTransient)
}

// do performs a request with rate limiting and retry, decoding the job payload.
func (c *ReplicateClient) do(ctx context.Context, method, path string, body any, retryIf func(error) bool) (*Job, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var job Job
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			var reader io.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Authorization", "Token "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			respBody, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				remote := &RemoteError{
					Backend:    ReplicateName,
					StatusCode: resp.StatusCode,
					Body:       strings.TrimSpace(string(respBody)),
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				}
				if resp.StatusCode == http.StatusTooManyRequests {
					c.limiter.Record429(remote.RetryAfter)
				}
				return remote
			}

			if err := json.Unmarshal(respBody, &job); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(c.retryDelay/2),
		retry.RetryIf(retryIf),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// isTransient reports whether a read request should be retried.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}
