package generation

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jackzampolin/folio/internal/prompts/concepts"
	"github.com/jackzampolin/folio/internal/prompts/style"
)

// Quality selects the image model tier.
type Quality string

const (
	QualityLow  Quality = "low"
	QualityHigh Quality = "high"
)

// ConceptsRequest asks for Count concepts about Topic.
type ConceptsRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count,omitempty"`
}

// Validate checks the request after defaults are applied.
func (r ConceptsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Topic,
			validation.By(notBlank("topic is required")),
		),
		validation.Field(&r.Count,
			validation.Required.Error("count is required"),
			validation.Min(1).Error("count must be between 1 and 100"),
			validation.Max(concepts.MaxCount).Error("count must be between 1 and 100"),
		),
	)
}

// ConceptsResponse holds the generated concepts in model order.
type ConceptsResponse struct {
	Concepts []concepts.Concept `json:"concepts"`
}

// StyleRequest asks for a style guide for Topic, biased by ConceptTitles.
type StyleRequest struct {
	Topic         string   `json:"topic"`
	ConceptTitles []string `json:"conceptTitles,omitempty"`
}

// Validate checks the request.
func (r StyleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Topic,
			validation.By(notBlank("topic is required")),
		),
	)
}

// StyleResponse wraps the generated style guide.
type StyleResponse struct {
	Style *style.Guide `json:"style"`
}

// StartItem is one image prompt to submit.
type StartItem struct {
	ConceptID string `json:"conceptId"`
	Prompt    string `json:"prompt"`
}

// Validate checks a single item.
func (i StartItem) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ConceptID, validation.Required.Error("conceptId is required")),
		validation.Field(&i.Prompt, validation.By(notBlank("prompt is required"))),
	)
}

// StartRequest submits one image job per item.
type StartRequest struct {
	Items   []StartItem `json:"items"`
	Quality Quality     `json:"quality,omitempty"`
}

// Validate checks the request after defaults are applied.
func (r StartRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Items),
		validation.Field(&r.Quality,
			validation.In(QualityLow, QualityHigh).Error("quality must be low or high"),
		),
	)
}

// Handle associates a concept with an in-flight image job.
type Handle struct {
	ConceptID string `json:"conceptId"`
	JobID     string `json:"jobId"`
}

// Validate checks a single handle.
func (h Handle) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.ConceptID, validation.Required.Error("conceptId is required")),
		validation.Field(&h.JobID, validation.Required.Error("jobId is required")),
	)
}

// ItemError reports a per-item failure.
type ItemError struct {
	ConceptID string `json:"conceptId"`
	Error     string `json:"error"`
}

// StartResponse lists submitted jobs and per-item submission failures,
// each in input order.
type StartResponse struct {
	Started []Handle    `json:"started"`
	Failed  []ItemError `json:"failed"`
}

// CheckRequest polls each handle once.
type CheckRequest struct {
	Items []Handle `json:"items"`
}

// Validate checks the request.
func (r CheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Items),
	)
}

// Completed is a resolved image.
type Completed struct {
	ConceptID string `json:"conceptId"`
	ImageURL  string `json:"imageUrl"`
}

// CheckResponse classifies every handle into exactly one bucket.
type CheckResponse struct {
	Completed []Completed `json:"completed"`
	Pending   []Handle    `json:"pending"`
	Failed    []ItemError `json:"failed"`
}

func notBlank(msg string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return validation.NewError("validation_required", msg)
		}
		return nil
	}
}
