package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

const MockClientName = "mock"

// Submission records a single Submit call made against a MockClient.
type Submission struct {
	Model string
	Input map[string]any
}

// MockClient is a scripted JobClient for testing.
//
// By default every submission produces a succeeded job whose output is
// ResponseText. OnSubmit overrides that; SetJob changes what Get reports.
type MockClient struct {
	ResponseText string

	// OnSubmit, when set, builds the job for a submission (call index starts at 0).
	// A job without an ID is assigned one.
	OnSubmit func(call int, model string, input map[string]any) (*Job, error)

	mu          sync.Mutex
	seq         int
	jobs        map[string]Job
	getErrs     map[string]error
	submissions []Submission

	getCount atomic.Int64
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
		jobs:         make(map[string]Job),
		getErrs:      make(map[string]error),
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Submit records the submission and creates a job.
func (c *MockClient) Submit(ctx context.Context, model string, input map[string]any) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	call := len(c.submissions)
	c.submissions = append(c.submissions, Submission{Model: model, Input: input})
	c.seq++
	id := fmt.Sprintf("mock-%d", c.seq)
	c.mu.Unlock()

	var job *Job
	if c.OnSubmit != nil {
		var err error
		job, err = c.OnSubmit(call, model, input)
		if err != nil {
			return nil, err
		}
	}
	if job == nil {
		job = &Job{Status: StatusSucceeded, Output: TextOutput(c.ResponseText)}
	}
	if job.ID == "" {
		job.ID = id
	}
	if job.Model == "" {
		job.Model = model
	}

	c.mu.Lock()
	c.jobs[job.ID] = *job
	c.mu.Unlock()

	out := *job
	return &out, nil
}

// Get returns the recorded job state.
func (c *MockClient) Get(ctx context.Context, id string) (*Job, error) {
	c.getCount.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.getErrs[id]; ok {
		return nil, err
	}
	job, ok := c.jobs[id]
	if !ok {
		return nil, &RemoteError{Backend: MockClientName, StatusCode: http.StatusNotFound, Body: "job not found: " + id}
	}
	return &job, nil
}

// SetJob stores (or replaces) the state Get reports for job.ID.
func (c *MockClient) SetJob(job Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.ID] = job
}

// SetGetError makes Get fail for id until cleared with a nil error.
func (c *MockClient) SetGetError(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.getErrs, id)
		return
	}
	c.getErrs[id] = err
}

// Submissions returns a copy of all recorded submissions.
func (c *MockClient) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.submissions...)
}

// GetCount returns the number of Get calls made.
func (c *MockClient) GetCount() int64 {
	return c.getCount.Load()
}

// Verify interface
var _ JobClient = (*MockClient)(nil)
