package main

import (
	"errors"
	"os"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
)

// Exit codes for the docconv CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Successful conversion
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or job
	ExitIO       = 3 // File not found, permission denied
	ExitBackend  = 4 // Every converter failed or none is installed
	ExitResource = 5 // Workspace storage exhausted
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Engine outcomes first: their causes may wrap I/O errors.
	switch docconv.Kind(err) {
	case docconv.KindResourceExhausted:
		return ExitResource
	case docconv.KindExhausted, docconv.KindNoEligible:
		return ExitBackend
	case docconv.KindInvalidJob:
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidEnv) ||
		errors.Is(err, ErrClassUnknown) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, docconv.ErrUnknownClass) ||
		errors.Is(err, docconv.ErrInvalidQuality) ||
		errors.Is(err, docconv.ErrInvalidEnhancement) ||
		errors.Is(err, docconv.ErrUnsupportedFormat) {
		return ExitUsage
	}

	return ExitGeneral
}
