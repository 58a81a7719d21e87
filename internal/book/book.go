// Package book holds the client-side state of one illustrated book: its
// spreads, the outstanding image jobs, and the current generation run.
package book

import (
	"github.com/jackzampolin/folio/internal/prompts/style"
)

// Status is a spread's position in the image lifecycle.
type Status string

const (
	StatusTextReady    Status = "textReady"
	StatusImagePending Status = "imagePending"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the spread accepts no further image transitions.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Spread is one text and image unit of the book.
type Spread struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Status     Status   `json:"status"`
}

func (s Spread) clone() Spread {
	s.Paragraphs = append([]string(nil), s.Paragraphs...)
	return s
}

// Handle associates a spread with an in-flight image job.
type Handle struct {
	ConceptID string `json:"conceptId"`
	JobID     string `json:"jobId"`
}

// Completed is an image resolved for a spread.
type Completed struct {
	ConceptID string `json:"conceptId"`
	ImageURL  string `json:"imageUrl"`
}

// Failure is an image job that ended without an image.
type Failure struct {
	ConceptID string `json:"conceptId"`
	Error     string `json:"error"`
}

// Tick is the result of one poll, applied atomically by Store.Reconcile.
type Tick struct {
	Run       uint64
	Completed []Completed
	Failed    []Failure
	Pending   []Handle
}

// State is a point-in-time copy of the store.
type State struct {
	Topic            string            `json:"topic"`
	Spreads          []Spread          `json:"spreads"`
	Outstanding      map[string]string `json:"outstanding"`
	Generating       bool              `json:"generating"`
	HasGeneratedOnce bool              `json:"hasGeneratedOnce"`
	StyleGuide       *style.Guide      `json:"styleGuide,omitempty"`
}

// Count returns the number of spreads in each status.
func (s State) Count() map[Status]int {
	counts := make(map[Status]int)
	for _, sp := range s.Spreads {
		counts[sp.Status]++
	}
	return counts
}
