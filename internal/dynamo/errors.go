package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with non-finite values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates buffers whose lengths disagree with N.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between buffers and particle count")

	// ErrStepPanic indicates a panic recovered while stepping.
	ErrStepPanic = errors.New("dynamo: panic during step")
)

// StepError wraps a failure raised while computing forces or integrating.
type StepError struct {
	Step    int64
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// Recovered converts a recovered panic value into an error wrapping
// ErrStepPanic, preserving an underlying error when there is one.
func Recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrStepPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrStepPanic, r)
}
