// Package session drives one client-side generation run against a backend:
// concepts, style guide, image submission, then polling until every image
// has resolved.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/book"
	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/prompts/image"
	"github.com/jackzampolin/folio/internal/prompts/style"
)

// ErrRunInProgress is returned when a run is started while another is generating.
var ErrRunInProgress = errors.New("a generation run is already in progress")

// Backend is the generation RPC surface. Both the HTTP client
// (*api.GenerationClient) and *generation.Service satisfy it.
type Backend interface {
	Checker
	GenerateConcepts(ctx context.Context, req generation.ConceptsRequest) (*generation.ConceptsResponse, error)
	GenerateStyleGuide(ctx context.Context, req generation.StyleRequest) (*generation.StyleResponse, error)
	StartImagePredictions(ctx context.Context, req generation.StartRequest) (*generation.StartResponse, error)
}

// Options configures a Session.
type Options struct {
	Count        int
	Quality      generation.Quality
	PollInterval time.Duration

	// OnUpdate, when set, receives a snapshot after each visible state change.
	OnUpdate func(book.State)
}

// Session owns a book.Store and runs generations into it.
type Session struct {
	backend Backend
	store   *book.Store
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex
	poller *Poller
}

// New creates a session writing into store.
func New(backend Backend, store *book.Store, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = book.NewStore()
	}
	return &Session{
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logger.With("component", "session"),
	}
}

// Store returns the session's book state.
func (s *Session) Store() *book.Store {
	return s.store
}

// Run generates a book for topic and blocks until every image job has
// resolved or ctx is done.
func (s *Session) Run(ctx context.Context, topic string) error {
	if err := s.Generate(ctx, topic); err != nil {
		return err
	}
	return s.Wait(ctx)
}

// Generate runs the text stages and submits the image jobs, then starts the
// poller in the background and returns. The generating flag is cleared on
// every exit path.
func (s *Session) Generate(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if !s.store.BeginRun(topic) {
		return ErrRunInProgress
	}
	defer s.store.SetGenerating(false)
	s.stopPoller()

	logger := s.logger.With("topic", topic)
	s.notify()

	cr, err := s.backend.GenerateConcepts(ctx, generation.ConceptsRequest{Topic: topic, Count: s.opts.Count})
	if err != nil {
		return fmt.Errorf("generate concepts: %w", err)
	}

	spreads := make([]book.Spread, len(cr.Concepts))
	titles := make([]string, len(cr.Concepts))
	for i, c := range cr.Concepts {
		spreads[i] = book.Spread{
			ID:         uuid.NewString(),
			Title:      c.Title,
			Paragraphs: c.Paragraphs,
			Status:     book.StatusImagePending,
		}
		titles[i] = c.Title
	}
	s.store.ReplaceSpreads(spreads)
	s.store.SetHasGeneratedOnce(true)
	s.notify()
	logger.Info("concepts ready", "count", len(spreads))

	var guide *style.Guide
	if sr, err := s.backend.GenerateStyleGuide(ctx, generation.StyleRequest{Topic: topic, ConceptTitles: titles}); err != nil {
		logger.Warn("style guide failed, using fallback prompts", "error", err)
	} else {
		guide = sr.Style
		s.store.SetStyleGuide(guide)
	}

	items := make([]generation.StartItem, len(spreads))
	for i, sp := range spreads {
		items[i] = generation.StartItem{
			ConceptID: sp.ID,
			Prompt:    image.FromStyle(sp.Title, topic, guide),
		}
	}

	started, err := s.backend.StartImagePredictions(ctx, generation.StartRequest{Items: items, Quality: s.opts.Quality})
	if err != nil {
		for _, sp := range spreads {
			s.store.MarkFailed(sp.ID)
		}
		s.notify()
		return fmt.Errorf("start image predictions: %w", err)
	}
	for _, f := range started.Failed {
		logger.Warn("image submission failed", "concept_id", f.ConceptID, "error", f.Error)
		s.store.MarkFailed(f.ConceptID)
	}

	handles := make([]book.Handle, len(started.Started))
	for i, h := range started.Started {
		handles[i] = book.Handle{ConceptID: h.ConceptID, JobID: h.JobID}
	}
	s.store.RegisterHandles(handles)
	logger.Info("image jobs submitted", "started", len(started.Started), "failed", len(started.Failed))

	s.startPoller(ctx)
	s.store.SetGenerating(false)
	s.notify()
	return nil
}

// Wait blocks until the current poller exits or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	p := s.poller
	s.mu.Unlock()
	if p == nil {
		return nil
	}

	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops background polling.
func (s *Session) Close() {
	s.stopPoller()
}

// DeleteSpread removes a spread; an in-flight poll will not bring it back.
func (s *Session) DeleteSpread(conceptID string) {
	s.store.DeleteSpread(conceptID)
	s.notify()
}

func (s *Session) startPoller(ctx context.Context) {
	p := NewPoller(s.store, s.backend, s.opts.PollInterval, s.logger)
	p.OnTick = s.opts.OnUpdate

	s.mu.Lock()
	s.poller = p
	s.mu.Unlock()
	p.Start(ctx)
}

func (s *Session) stopPoller() {
	s.mu.Lock()
	p := s.poller
	s.poller = nil
	s.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (s *Session) notify() {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(s.store.Snapshot())
	}
}
