package pipeline

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates invalid engine setup (duplicate output keys,
// cyclic step dependencies, unknown storage keys). Fatal at startup, before
// any release is processed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "pipeline configuration error: " + e.Reason
}

// StepError indicates a worker's internal logic failed for one release.
// It aborts the remainder of that release's step sequence and never
// propagates to other releases.
type StepError struct {
	Release string
	Worker  string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed for release %s: %v", e.Worker, e.Release, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsStepError reports whether err is (or wraps) a StepError.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
