package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers failures found before any planning: input
	// raster missing or unreadable, no determinable SRS or bounding
	// box, or an output directory that already exists without resume.
	// Nothing is dispatched.
	ErrValidation = errors.New("validation failed")

	// ErrDispatchAbort covers the input vanishing or the output root
	// becoming unwritable mid-enumeration. Already-submitted tasks are
	// not retracted; the run reports partial counts.
	ErrDispatchAbort = errors.New("dispatch aborted")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func abortf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDispatchAbort, fmt.Sprintf(format, args...))
}
