package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/folio/internal/book"
	"github.com/jackzampolin/folio/internal/generation"
)

// DefaultPollInterval is the cadence of image status checks.
const DefaultPollInterval = 1500 * time.Millisecond

// ErrTickInFlight is returned by Tick when the previous poll has not finished.
var ErrTickInFlight = errors.New("poll already in flight")

// Checker polls image jobs. *generation.Service and *api.GenerationClient satisfy it.
type Checker interface {
	CheckImagePredictions(ctx context.Context, req generation.CheckRequest) (*generation.CheckResponse, error)
}

// Poller reconciles outstanding image jobs into a book.Store at a fixed interval.
// It runs only while the store has outstanding handles. A Poller is started once.
type Poller struct {
	store    *book.Store
	checker  Checker
	interval time.Duration
	logger   *slog.Logger

	// OnTick, when set, is called with a snapshot after every applied tick.
	OnTick func(book.State)

	inFlight atomic.Bool
	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(store *book.Store, checker Checker, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		checker:  checker,
		interval: interval,
		logger:   logger.With("component", "poller"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop and returns immediately. The loop exits when
// the outstanding set is empty, ctx is done, or Stop is called. Calls after
// the first are no-ops.
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	go p.loop(ctx, cancel)
}

// Stop ends the poll loop and cancels a check that is still in flight.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Done is closed once the loop has exited and any in-flight tick has finished.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) loop(ctx context.Context, cancel context.CancelFunc) {
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		close(p.done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	landed := make(chan struct{}, 1)

	for {
		if len(p.store.Outstanding()) == 0 {
			p.logger.Debug("no outstanding jobs, poller exiting")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-landed:
			continue
		case <-ticker.C:
		}

		if p.inFlight.Load() {
			p.logger.Debug("previous poll still in flight, skipping tick")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Tick(ctx); err != nil && !errors.Is(err, ErrTickInFlight) && ctx.Err() == nil {
				p.logger.Warn("image poll failed", "error", err)
			}
			select {
			case landed <- struct{}{}:
			default:
			}
		}()
	}
}

// Tick performs one poll: snapshot the outstanding handles, check them, and
// apply the result to the store atomically. A failed or cancelled check
// leaves the store untouched, as does a result for a run that has since been
// replaced. It returns the number of handles still outstanding.
func (p *Poller) Tick(ctx context.Context) (int, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return 0, ErrTickInFlight
	}
	defer p.inFlight.Store(false)

	run, handles := p.store.OutstandingRun()
	if len(handles) == 0 {
		return 0, nil
	}

	items := make([]generation.Handle, len(handles))
	for i, h := range handles {
		items[i] = generation.Handle{ConceptID: h.ConceptID, JobID: h.JobID}
	}

	resp, err := p.checker.CheckImagePredictions(ctx, generation.CheckRequest{Items: items})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return len(handles), err
	}

	tick := toTick(resp)
	tick.Run = run
	if !p.store.Reconcile(tick) {
		p.logger.Debug("discarding poll for a replaced run")
		return len(p.store.Outstanding()), nil
	}
	remaining := len(p.store.Outstanding())
	p.logger.Debug("poll applied",
		"completed", len(resp.Completed),
		"failed", len(resp.Failed),
		"pending", remaining)

	if p.OnTick != nil {
		p.OnTick(p.store.Snapshot())
	}
	return remaining, nil
}

func toTick(resp *generation.CheckResponse) book.Tick {
	var t book.Tick
	for _, c := range resp.Completed {
		t.Completed = append(t.Completed, book.Completed{ConceptID: c.ConceptID, ImageURL: c.ImageURL})
	}
	for _, f := range resp.Failed {
		t.Failed = append(t.Failed, book.Failure{ConceptID: f.ConceptID, Error: f.Error})
	}
	for _, h := range resp.Pending {
		t.Pending = append(t.Pending, book.Handle{ConceptID: h.ConceptID, JobID: h.JobID})
	}
	return t
}
