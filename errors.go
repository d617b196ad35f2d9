package docconv

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for engine operations.
var (
	ErrInvalidJob             = errors.New("invalid job")
	ErrResourceExhausted      = errors.New("resource exhausted")
	ErrStrategyFailed         = errors.New("strategy failed")
	ErrAllStrategiesExhausted = errors.New("all strategies exhausted")
	ErrNoEligibleStrategy     = errors.New("no eligible strategy")
	ErrEngineClosed           = errors.New("engine is closed")

	// ErrCorruptOutput marks a strategy result that is missing, empty, or not
	// of the declared media type.
	ErrCorruptOutput = errors.New("corrupt output")

	// Job validation details. Always wrapped together with ErrInvalidJob.
	ErrNoInput            = errors.New("no input files")
	ErrEmptyFile          = errors.New("input file is empty")
	ErrTooManyFiles       = errors.New("too many input files")
	ErrFileTooLarge       = errors.New("input exceeds maximum size")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrFeatureDisabled    = errors.New("feature disabled")
	ErrUnknownClass       = errors.New("unknown conversion class")
	ErrInvalidQuality     = errors.New("invalid quality profile")
	ErrInvalidEnhancement = errors.New("invalid enhancement")
)

// invalidJob wraps a validation detail so that both ErrInvalidJob and the
// detail sentinel match with errors.Is.
func invalidJob(detail error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, detail)
	}
	return fmt.Errorf("%w: %w: %s", ErrInvalidJob, detail, msg)
}

// StrategyError records the failure of a single strategy attempt.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// Unwrap exposes both ErrStrategyFailed and the underlying cause.
func (e *StrategyError) Unwrap() []error {
	return []error{ErrStrategyFailed, e.Err}
}

// ExhaustedError is returned when every eligible strategy failed.
// Attempts holds one entry per strategy that ran, in execution order.
type ExhaustedError struct {
	Class    Class
	Attempts []*StrategyError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("%s for %s: [%s]", ErrAllStrategiesExhausted, e.Class, strings.Join(parts, "; "))
}

// Is matches ErrAllStrategiesExhausted. Attempt causes are reachable through As
// on the Attempts slice, not through the error chain, so that a failed attempt
// does not make the whole error look like a single StrategyFailed.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllStrategiesExhausted
}

// Skip explains why a strategy was not eligible for a job.
type Skip struct {
	Strategy string
	Reason   string
}

// NoEligibleError is returned when no strategy of a class could run.
type NoEligibleError struct {
	Class   Class
	Skipped []Skip
}

func (e *NoEligibleError) Error() string {
	if len(e.Skipped) == 0 {
		return fmt.Sprintf("%s for %s: no strategies registered", ErrNoEligibleStrategy, e.Class)
	}
	parts := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		parts[i] = s.Strategy + " (" + s.Reason + ")"
	}
	return fmt.Sprintf("%s for %s: skipped %s", ErrNoEligibleStrategy, e.Class, strings.Join(parts, ", "))
}

func (e *NoEligibleError) Is(target error) bool {
	return target == ErrNoEligibleStrategy
}

// ErrorKind classifies an error returned by Engine.Submit.
type ErrorKind string

// Error kinds, as reported in statistics events.
const (
	KindNone              ErrorKind = ""
	KindInvalidJob        ErrorKind = "invalid_job"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindExhausted         ErrorKind = "all_strategies_exhausted"
	KindNoEligible        ErrorKind = "no_eligible_strategy"
	KindClosed            ErrorKind = "engine_closed"
	KindCanceled          ErrorKind = "canceled"
	KindInternal          ErrorKind = "internal"
)

// Kind returns the classification of err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidJob):
		return KindInvalidJob
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, ErrNoEligibleStrategy):
		return KindNoEligible
	case errors.Is(err, ErrAllStrategiesExhausted):
		return KindExhausted
	case errors.Is(err, ErrEngineClosed):
		return KindClosed
	case errors.Is(err, errCanceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// errCanceled marks a job whose caller gave up while waiting for a slot.
var errCanceled = errors.New("conversion canceled")

// UserMessage returns the single message shown to an end user for err.
// Per-strategy diagnostics are left out on purpose; they belong in logs.
func UserMessage(err error) string {
	switch Kind(err) {
	case KindNone:
		return ""
	case KindInvalidJob:
		return invalidJobMessage(err)
	case KindResourceExhausted:
		return "The server is out of temporary storage. Please try again later."
	case KindNoEligible:
		return "This conversion is not available right now: no converter is installed for it."
	case KindExhausted:
		return "The conversion failed. The file may be damaged or in an unsupported layout."
	case KindClosed:
		return "The converter is shutting down. Please try again later."
	case KindCanceled:
		return "The conversion was canceled."
	default:
		return "An unexpected error occurred during conversion."
	}
}

func invalidJobMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoInput):
		return "No files were provided."
	case errors.Is(err, ErrEmptyFile):
		return "One of the files is empty."
	case errors.Is(err, ErrTooManyFiles):
		return "Too many files for one conversion."
	case errors.Is(err, ErrFileTooLarge):
		return "The files are too large."
	case errors.Is(err, ErrUnsupportedFormat):
		return "This file format is not supported for the requested conversion."
	case errors.Is(err, ErrFeatureDisabled):
		return "This conversion is currently disabled."
	default:
		return "The conversion request is invalid."
	}
}
