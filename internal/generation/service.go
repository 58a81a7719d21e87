// Package generation implements the server-side pipeline: concept and style
// guide generation on a text model, and fan-out submission and polling of
// image jobs.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/folio/internal/llmcall"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/prompts/concepts"
	"github.com/jackzampolin/folio/internal/prompts/image"
	"github.com/jackzampolin/folio/internal/prompts/style"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/structured"
)

// Backends looks up job clients by configured name.
// *providers.Registry satisfies it.
type Backends interface {
	Get(name string) (providers.JobClient, error)
}

// Service runs the generation pipeline. It holds no per-run state and is safe
// for concurrent use.
type Service struct {
	backends Backends
	recorder llmcall.Recorder
	logger   *slog.Logger

	mu  sync.RWMutex
	cfg Config
}

// NewService creates a generation service.
func NewService(backends Backends, cfg Config, recorder llmcall.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = llmcall.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backends: backends,
		recorder: recorder,
		logger:   logger.With("component", "generation"),
		cfg:      cfg.withDefaults(),
	}
}

// Config returns the active configuration.
func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the active configuration. In-flight calls keep the
// configuration they started with.
func (s *Service) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
	s.logger.Info("generation config updated",
		"text_model", s.cfg.Text.Name,
		"low_model", s.cfg.Images[QualityLow].Name,
		"high_model", s.cfg.Images[QualityHigh].Name)
}

// textCall describes one text-model completion.
type textCall struct {
	stage       string
	topic       string
	attempt     int
	system      string
	user        string
	promptKey   string
	temperature float64
	wait        providers.WaitOptions
}

// complete submits a text job, waits for it, and records the call.
// A job that ends in any status other than succeeded yields *GenerationError;
// transport errors are returned as-is.
func (s *Service) complete(ctx context.Context, model TextModel, call textCall) (string, error) {
	client, err := s.backends.Get(model.Backend)
	if err != nil {
		return "", fmt.Errorf("text backend: %w", err)
	}

	started := time.Now()
	temp := call.temperature
	opts := llmcall.RecordOptions{
		Stage:       call.stage,
		Topic:       call.topic,
		Attempt:     call.attempt,
		PromptKey:   call.promptKey,
		PromptHash:  prompts.HashText(call.user),
		Backend:     model.Backend,
		Model:       model.Name,
		Temperature: &temp,
	}

	job, err := client.Submit(ctx, model.Name, map[string]any{
		"system_prompt": call.system,
		"prompt":        call.user,
		"temperature":   call.temperature,
	})
	if err == nil {
		job, err = providers.WaitUntilTerminal(ctx, client, job.ID, call.wait)
	}
	s.recorder.Record(llmcall.FromJob(job, err, started, opts))
	if err != nil {
		return "", err
	}

	if job.Status != providers.StatusSucceeded {
		return "", &GenerationError{Stage: call.stage, Err: fmt.Errorf("job %s %s: %s", job.ID, job.Status, job.Failure())}
	}
	return job.Output.Text(), nil
}

// GenerateConcepts asks the text model for concepts about a topic. Output that
// does not parse or validate is retried once with an explicit JSON reminder.
func (s *Service) GenerateConcepts(ctx context.Context, req ConceptsRequest) (*ConceptsResponse, error) {
	cfg := s.Config()
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Count == 0 {
		req.Count = cfg.DefaultCount
	}
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	logger := s.logger.With("stage", StageConcepts, "topic", req.Topic)
	call := textCall{
		stage:       StageConcepts,
		topic:       req.Topic,
		attempt:     1,
		system:      concepts.SystemPrompt(),
		user:        concepts.UserPrompt(req.Topic, req.Count),
		promptKey:   concepts.UserPromptKey,
		temperature: cfg.Text.Temperature,
		wait:        ConceptsWait,
	}

	text, err := s.complete(ctx, cfg.Text, call)
	if err != nil {
		return nil, err
	}
	result, err := structured.Decode[concepts.Result](concepts.Schema, text)
	if err != nil {
		logger.Warn("concept output rejected, retrying", "error", err)

		call.attempt = 2
		call.user += concepts.RetryReminder
		call.temperature = retryTemperature
		text, err = s.complete(ctx, cfg.Text, call)
		if err != nil {
			return nil, err
		}
		result, err = structured.Decode[concepts.Result](concepts.Schema, text)
		if err != nil {
			return nil, &GenerationError{Stage: StageConcepts, Err: err}
		}
	}

	result.Normalize(req.Count)
	logger.Info("concepts generated", "count", len(result.Concepts))
	return &ConceptsResponse{Concepts: result.Concepts}, nil
}

// GenerateStyleGuide asks the text model for a style guide. There is no retry.
func (s *Service) GenerateStyleGuide(ctx context.Context, req StyleRequest) (*StyleResponse, error) {
	cfg := s.Config()
	req.Topic = strings.TrimSpace(req.Topic)
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	text, err := s.complete(ctx, cfg.Text, textCall{
		stage:       StageStyle,
		topic:       req.Topic,
		attempt:     1,
		system:      style.SystemPrompt(),
		user:        style.UserPrompt(req.Topic, req.ConceptTitles),
		promptKey:   style.UserPromptKey,
		temperature: cfg.Text.Temperature,
		wait:        StyleWait,
	})
	if err != nil {
		return nil, err
	}

	guide, err := style.Parse(text)
	if err != nil {
		return nil, &GenerationError{Stage: StageStyle, Err: err}
	}
	s.logger.Info("style guide generated", "topic", req.Topic, "palette", len(guide.Palette))
	return &StyleResponse{Style: guide}, nil
}

// StartImagePredictions submits one image job per item without waiting.
// A failed submission is reported for that item only; the rest are still
// submitted. Both result lists keep input order.
func (s *Service) StartImagePredictions(ctx context.Context, req StartRequest) (*StartResponse, error) {
	cfg := s.Config()
	if req.Quality == "" {
		req.Quality = QualityLow
	}
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	model := cfg.Images[req.Quality]
	client, err := s.backends.Get(model.Backend)
	if err != nil {
		return nil, fmt.Errorf("image backend: %w", err)
	}

	type outcome struct {
		jobID string
		err   error
	}
	results := make([]outcome, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SubmitConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			input := map[string]any{
				"prompt": image.WithStrongNoText(item.Prompt),
			}
			if cfg.AspectRatio != "" {
				input["aspect_ratio"] = cfg.AspectRatio
			}
			if model.NegativePrompt {
				input["negative_prompt"] = image.StrongNegative
			}

			job, err := client.Submit(gctx, model.Name, input)
			if err != nil {
				results[i] = outcome{err: err}
				return nil
			}
			results[i] = outcome{jobID: job.ID}
			return nil
		})
	}
	_ = g.Wait()

	resp := &StartResponse{Started: []Handle{}, Failed: []ItemError{}}
	for i, r := range results {
		conceptID := req.Items[i].ConceptID
		if r.err != nil {
			s.logger.Warn("image submission failed", "concept_id", conceptID, "error", r.err)
			resp.Failed = append(resp.Failed, ItemError{ConceptID: conceptID, Error: r.err.Error()})
			continue
		}
		resp.Started = append(resp.Started, Handle{ConceptID: conceptID, JobID: r.jobID})
	}

	s.logger.Info("image predictions started",
		"quality", req.Quality,
		"model", model.Name,
		"started", len(resp.Started),
		"failed", len(resp.Failed))
	return resp, nil
}

// ErrNoImageURL is reported for a succeeded job whose output has no image URL.
var ErrNoImageURL = errors.New("no image URL in output")

// CheckImagePredictions polls every handle once and classifies it as
// completed, pending or failed. A poll error leaves the item pending.
func (s *Service) CheckImagePredictions(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	cfg := s.Config()
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	// Handles carry only a job id; try the low tier backend first.
	clients, err := s.imageClients(cfg)
	if err != nil {
		return nil, err
	}

	jobs := make([]*providers.Job, len(req.Items))
	errs := make([]error, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SubmitConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			jobs[i], errs[i] = getFromAny(gctx, clients, item.JobID)
			return nil
		})
	}
	_ = g.Wait()

	resp := &CheckResponse{Completed: []Completed{}, Pending: []Handle{}, Failed: []ItemError{}}
	for i, item := range req.Items {
		if errs[i] != nil {
			s.logger.Warn("image poll failed", "concept_id", item.ConceptID, "job_id", item.JobID, "error", errs[i])
			resp.Pending = append(resp.Pending, item)
			continue
		}

		job := jobs[i]
		switch job.Status {
		case providers.StatusSucceeded:
			if url, ok := job.Output.ImageURL(); ok {
				resp.Completed = append(resp.Completed, Completed{ConceptID: item.ConceptID, ImageURL: url})
			} else {
				resp.Failed = append(resp.Failed, ItemError{ConceptID: item.ConceptID, Error: ErrNoImageURL.Error()})
			}
		case providers.StatusFailed, providers.StatusCanceled:
			resp.Failed = append(resp.Failed, ItemError{ConceptID: item.ConceptID, Error: job.Failure()})
		default:
			resp.Pending = append(resp.Pending, item)
		}
	}
	return resp, nil
}

// imageClients returns the distinct available backends serving the image
// tiers, low first. A tier whose backend is unavailable is skipped; it is an
// error only when no tier has a backend.
func (s *Service) imageClients(cfg Config) ([]providers.JobClient, error) {
	var clients []providers.JobClient
	var firstErr error
	seen := make(map[string]bool)
	for _, q := range []Quality{QualityLow, QualityHigh} {
		name := cfg.Images[q].Backend
		if seen[name] {
			continue
		}
		seen[name] = true
		client, err := s.backends.Get(name)
		if err != nil {
			s.logger.Warn("image backend unavailable", "quality", q, "backend", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("image backend: %w", firstErr)
	}
	return clients, nil
}

func getFromAny(ctx context.Context, clients []providers.JobClient, id string) (*providers.Job, error) {
	var err error
	for _, c := range clients {
		var job *providers.Job
		job, err = c.Get(ctx, id)
		if err == nil {
			return job, nil
		}
	}
	return nil, err
}
