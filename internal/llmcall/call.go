// Package llmcall provides LLM call recording and querying for traceability.
// Every text-model call made by the generation pipeline is recorded with its
// prompt key, response, and timing.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/providers"
)

// Call represents a recorded LLM call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	Stage   string `json:"stage"` // "concepts", "style"
	Topic   string `json:"topic,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Attempt int    `json:"attempt"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"`

	// Model info
	Backend     string   `json:"backend"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Response
	Response string `json:"response"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	Stage   string
	Topic   string
	Attempt int

	// Prompt identification (required for traceability)
	PromptKey  string
	PromptHash string

	Backend string
	Model   string

	// Pointer to distinguish "not set" from "set to 0"
	Temperature *float64
}

// FromJob creates a Call from a finished (or failed) job.
// job may be nil when the call failed before a job was created or while waiting;
// err is the error observed by the caller, if any.
func FromJob(job *providers.Job, err error, started time.Time, opts RecordOptions) *Call {
	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   started,
		LatencyMs:   int(time.Since(started).Milliseconds()),
		Stage:       opts.Stage,
		Topic:       opts.Topic,
		Attempt:     opts.Attempt,
		PromptKey:   opts.PromptKey,
		PromptHash:  opts.PromptHash,
		Backend:     opts.Backend,
		Model:       opts.Model,
		Temperature: opts.Temperature,
	}

	if job != nil {
		call.JobID = job.ID
		call.Response = job.Output.Text()
		call.Success = job.Status == providers.StatusSucceeded
		if !call.Success {
			call.Error = job.Failure()
		}
	}
	if err != nil {
		call.Success = false
		call.Error = err.Error()
	}

	return call
}
