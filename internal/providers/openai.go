package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName = "openai"

	openAIJobRetention = 10 * time.Minute
)

// OpenAIConfig holds configuration for the OpenAI text client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string        // Optional (tests)
	RateLimit  int           // Requests per minute
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // Per-completion timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient exposes chat completions through the create/poll job contract.
// Submit starts the completion in the background and returns immediately;
// Get reports the job as it progresses. Jobs are kept in memory.
type OpenAIClient struct {
	apiKey  string
	timeout time.Duration
	client  openai.Client
	limiter *RateLimiter

	mu   sync.Mutex
	jobs map[string]*openAIJob
}

type openAIJob struct {
	job      Job
	finished time.Time
}

// NewOpenAIClient creates a new OpenAI text client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  openai.NewClient(opts...),
		limiter: NewRateLimiter(cfg.RateLimit),
		jobs:    make(map[string]*openAIJob),
	}
}

// Name returns the backend identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RateLimiterStatus reports the client's limiter state.
func (c *OpenAIClient) RateLimiterStatus() RateLimiterStatus {
	return c.limiter.Status()
}

// Submit starts a chat completion. Recognized input keys are
// "prompt" (required), "system_prompt" and "temperature".
func (c *OpenAIClient) Submit(ctx context.Context, model string, input map[string]any) (*Job, error) {
	if c.apiKey == "" {
		return nil, &AuthError{Backend: OpenAIName}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	prompt, _ := input["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
	}
	if system, _ := input["system_prompt"].(string); system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	params.Messages = append(params.Messages, openai.UserMessage(prompt))
	if temp, ok := toFloat(input["temperature"]); ok {
		params.Temperature = openai.Float(temp)
	}

	job := Job{ID: uuid.NewString(), Model: model, Status: StatusStarting}

	c.mu.Lock()
	c.pruneLocked(time.Now())
	c.jobs[job.ID] = &openAIJob{job: job}
	c.mu.Unlock()

	go c.run(job.ID, params)

	return &job, nil
}

// run executes the completion detached from the submitting request.
func (c *OpenAIClient) run(id string, params openai.ChatCompletionNewParams) {
	c.update(id, func(j *Job) { j.Status = StatusProcessing })

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = c.mapError(err)
		c.update(id, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		return
	}
	if len(resp.Choices) == 0 {
		c.update(id, func(j *Job) {
			j.Status = StatusFailed
			j.Error = "no choices in response"
		})
		return
	}

	content := resp.Choices[0].Message.Content
	c.update(id, func(j *Job) {
		j.Status = StatusSucceeded
		j.Output = TextOutput(content)
	})
}

func (c *OpenAIClient) update(id string, fn func(*Job)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.jobs[id]
	if !ok {
		return
	}
	fn(&entry.job)
	if entry.job.Status.Terminal() {
		entry.finished = time.Now()
	}
}

// Get returns the current state of a job.
func (c *OpenAIClient) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.jobs[id]
	if !ok {
		return nil, &RemoteError{
			Backend:    OpenAIName,
			StatusCode: http.StatusNotFound,
			Body:       "job not found: " + id,
		}
	}
	job := entry.job
	return &job, nil
}

// pruneLocked drops finished jobs older than the retention window.
func (c *OpenAIClient) pruneLocked(now time.Time) {
	for id, entry := range c.jobs {
		if !entry.finished.IsZero() && now.Sub(entry.finished) > openAIJobRetention {
			delete(c.jobs, id)
		}
	}
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		remote := &RemoteError{
			Backend:    OpenAIName,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
		if apiErr.Response != nil {
			remote.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429(remote.RetryAfter)
		}
		return remote
	}
	return err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
