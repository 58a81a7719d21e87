package providers

import (
	"context"
	"encoding/json"
)

// JobClient is the contract for prediction-style inference backends:
// a job is created, then polled until it reaches a terminal status.
// Any backend exposing this create/poll pair is substitutable.
type JobClient interface {
	// Name returns the backend identifier (e.g., "replicate").
	Name() string

	// Submit creates a job for the given model. It does not wait for completion.
	Submit(ctx context.Context, model string, input map[string]any) (*Job, error)

	// Get fetches the current state of a job with a single round-trip.
	Get(ctx context.Context, id string) (*Job, error)
}

// Status is the lifecycle state reported by the backend for a job.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further transitions will happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job is a backend job as seen by the client.
type Job struct {
	ID     string `json:"id"`
	Model  string `json:"model,omitempty"`
	Status Status `json:"status"`
	Output Output `json:"output"`
	Error  string `json:"error,omitempty"`
}

// jobWire accepts the loose error field some backends send (string, null, or object).
type jobWire struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// UnmarshalJSON decodes a backend job payload.
func (j *Job) UnmarshalJSON(data []byte) error {
	var w jobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	j.ID = w.ID
	j.Model = w.Model
	j.Status = w.Status
	j.Output = ParseOutput(w.Output)
	j.Error = decodeErrorField(w.Error)
	return nil
}

func decodeErrorField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Failure returns a human-readable reason for a failed or canceled job.
func (j *Job) Failure() string {
	if j.Error != "" {
		return j.Error
	}
	return string(j.Status)
}
