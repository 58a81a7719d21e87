package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/book"
	"github.com/jackzampolin/folio/internal/generation"
)

// fakeChecker answers checks with a function.
type fakeChecker struct {
	calls atomic.Int32
	fn    func(req generation.CheckRequest) (*generation.CheckResponse, error)
}

func (f *fakeChecker) CheckImagePredictions(ctx context.Context, req generation.CheckRequest) (*generation.CheckResponse, error) {
	f.calls.Add(1)
	return f.fn(req)
}

func pendingAll(req generation.CheckRequest) (*generation.CheckResponse, error) {
	return &generation.CheckResponse{Pending: req.Items}, nil
}

func seededStore() *book.Store {
	s := book.NewStore()
	s.ReplaceSpreads([]book.Spread{
		{ID: "a", Status: book.StatusImagePending},
		{ID: "b", Status: book.StatusImagePending},
	})
	s.RegisterHandles([]book.Handle{{ConceptID: "a", JobID: "ja"}, {ConceptID: "b", JobID: "jb"}})
	return s
}

func TestPollerTick(t *testing.T) {
	t.Run("applies buckets", func(t *testing.T) {
		store := seededStore()
		checker := &fakeChecker{fn: func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			return &generation.CheckResponse{
				Completed: []generation.Completed{{ConceptID: "a", ImageURL: "https://img/a.png"}},
				Pending:   []generation.Handle{{ConceptID: "b", JobID: "jb"}},
			}, nil
		}}
		p := NewPoller(store, checker, time.Hour, nil)

		remaining, err := p.Tick(context.Background())
		if err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		if remaining != 1 {
			t.Errorf("remaining = %d, want 1", remaining)
		}
		if sp := store.Snapshot().Spreads[0]; sp.Status != book.StatusReady {
			t.Errorf("spread a = %+v", sp)
		}
	})

	t.Run("failed check leaves store untouched", func(t *testing.T) {
		store := seededStore()
		before := store.Snapshot()
		checker := &fakeChecker{fn: func(generation.CheckRequest) (*generation.CheckResponse, error) {
			return nil, errors.New("server unavailable")
		}}
		p := NewPoller(store, checker, time.Hour, nil)

		remaining, err := p.Tick(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
		if remaining != 2 {
			t.Errorf("remaining = %d, want 2", remaining)
		}
		after := store.Snapshot()
		if len(after.Outstanding) != len(before.Outstanding) || after.Spreads[0].Status != before.Spreads[0].Status {
			t.Errorf("store changed: %+v -> %+v", before, after)
		}
	})

	t.Run("skips while in flight", func(t *testing.T) {
		store := seededStore()
		release := make(chan struct{})
		entered := make(chan struct{})
		checker := &fakeChecker{fn: func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			close(entered)
			<-release
			return pendingAll(req)
		}}
		p := NewPoller(store, checker, time.Hour, nil)

		done := make(chan error, 1)
		go func() {
			_, err := p.Tick(context.Background())
			done <- err
		}()
		<-entered

		if _, err := p.Tick(context.Background()); !errors.Is(err, ErrTickInFlight) {
			t.Errorf("second Tick() error = %v, want ErrTickInFlight", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Errorf("first Tick() error = %v", err)
		}
		if checker.calls.Load() != 1 {
			t.Errorf("checks = %d, want 1", checker.calls.Load())
		}
	})

	t.Run("deletion during poll is not undone", func(t *testing.T) {
		store := seededStore()
		checker := &fakeChecker{fn: func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			store.DeleteSpread("b")
			return pendingAll(req)
		}}
		p := NewPoller(store, checker, time.Hour, nil)

		if _, err := p.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		st := store.Snapshot()
		if _, ok := st.Outstanding["b"]; ok || len(st.Spreads) != 1 {
			t.Errorf("deleted spread resurrected: %+v", st)
		}
	})

	t.Run("no outstanding is a no-op", func(t *testing.T) {
		checker := &fakeChecker{fn: pendingAll}
		p := NewPoller(book.NewStore(), checker, time.Hour, nil)
		if n, err := p.Tick(context.Background()); n != 0 || err != nil {
			t.Errorf("Tick() = %d, %v", n, err)
		}
		if checker.calls.Load() != 0 {
			t.Error("check called with nothing outstanding")
		}
	})
}

func TestPollerLoop(t *testing.T) {
	t.Run("exits when outstanding drains", func(t *testing.T) {
		store := seededStore()
		checker := &fakeChecker{}
		checker.fn = func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			if checker.calls.Load() < 3 {
				return pendingAll(req)
			}
			resp := &generation.CheckResponse{}
			for _, h := range req.Items {
				resp.Failed = append(resp.Failed, generation.ItemError{ConceptID: h.ConceptID, Error: "boom"})
			}
			return resp, nil
		}
		p := NewPoller(store, checker, 5*time.Millisecond, nil)
		p.Start(context.Background())

		select {
		case <-p.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("poller did not exit")
		}
		if n := store.Snapshot().Count()[book.StatusFailed]; n != 2 {
			t.Errorf("failed spreads = %d, want 2", n)
		}
		if checker.calls.Load() < 3 {
			t.Errorf("checks = %d, want at least 3", checker.calls.Load())
		}
	})

	t.Run("keeps polling through errors", func(t *testing.T) {
		store := seededStore()
		checker := &fakeChecker{}
		checker.fn = func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			if checker.calls.Load() == 1 {
				return nil, errors.New("transient")
			}
			return &generation.CheckResponse{Completed: []generation.Completed{
				{ConceptID: "a", ImageURL: "x"}, {ConceptID: "b", ImageURL: "y"},
			}}, nil
		}
		p := NewPoller(store, checker, 5*time.Millisecond, nil)
		p.Start(context.Background())

		select {
		case <-p.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("poller did not exit")
		}
		if n := store.Snapshot().Count()[book.StatusReady]; n != 2 {
			t.Errorf("ready spreads = %d, want 2", n)
		}
	})

	t.Run("stop and cancel", func(t *testing.T) {
		for name, end := range map[string]func(*Poller, context.CancelFunc){
			"stop":   func(p *Poller, _ context.CancelFunc) { p.Stop() },
			"cancel": func(_ *Poller, cancel context.CancelFunc) { cancel() },
		} {
			t.Run(name, func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()
				p := NewPoller(seededStore(), &fakeChecker{fn: pendingAll}, 5*time.Millisecond, nil)
				p.Start(ctx)
				p.Start(ctx)
				end(p, cancel)

				select {
				case <-p.Done():
				case <-time.After(5 * time.Second):
					t.Fatal("poller did not exit")
				}
			})
		}
	})

	t.Run("on tick callback", func(t *testing.T) {
		store := seededStore()
		var seen atomic.Int32
		p := NewPoller(store, &fakeChecker{fn: func(req generation.CheckRequest) (*generation.CheckResponse, error) {
			return &generation.CheckResponse{}, nil
		}}, time.Hour, nil)
		p.OnTick = func(st book.State) { seen.Add(1) }

		if _, err := p.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		if seen.Load() != 1 {
			t.Errorf("OnTick calls = %d, want 1", seen.Load())
		}
	})
}

func TestPollerStopCancelsInFlight(t *testing.T) {
	store := seededStore()
	entered := make(chan struct{})
	checker := &fakeChecker{fn: func(req generation.CheckRequest) (*generation.CheckResponse, error) {
		return &generation.CheckResponse{Completed: []generation.Completed{{ConceptID: "a", ImageURL: "https://img/a.png"}}}, nil
	}}
	blocking := &ctxChecker{entered: entered, next: checker}

	p := NewPoller(store, blocking, 5*time.Millisecond, nil)
	p.Start(context.Background())

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never started")
	}
	p.Stop()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the in-flight check")
	}
	if st := store.Snapshot(); st.Spreads[0].Status != book.StatusImagePending || len(st.Outstanding) != 2 {
		t.Errorf("cancelled poll changed the store: %+v", st)
	}
}

// ctxChecker blocks until its context is cancelled, then answers anyway.
type ctxChecker struct {
	once    sync.Once
	entered chan struct{}
	next    Checker
}

func (c *ctxChecker) CheckImagePredictions(ctx context.Context, req generation.CheckRequest) (*generation.CheckResponse, error) {
	c.once.Do(func() { close(c.entered) })
	<-ctx.Done()
	return c.next.CheckImagePredictions(context.Background(), req)
}
