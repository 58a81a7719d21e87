package generation

import "fmt"

// Stages reported by GenerationError.
const (
	StageConcepts = "concepts"
	StageStyle    = "style"
)

// ValidationError is returned when a request is rejected before any remote call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// GenerationError is returned when a text stage produced no usable output:
// the job failed, or its output could not be parsed and validated.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
