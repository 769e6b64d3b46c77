package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures for exit-code mapping. Wrap an
// error with one of these so the CLI can translate it without string matching.
var (
	ErrInternal           = errors.New("internal error")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
	ErrCorruptIndex       = errors.New("corrupt index")
	ErrLocked             = errors.New("instance locked")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
)

// Exit codes surfaced by the CLI. Locked and corrupt-index failures get
// distinct codes so wrapper scripts can branch on them.
const (
	ExitFailure      = 1
	ExitUsage        = 2
	ExitLocked       = 3
	ExitCorruptIndex = 4
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an error to the process exit code the CLI should use.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrLocked):
		return ExitLocked
	case errors.Is(err, ErrCorruptIndex):
		return ExitCorruptIndex
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrAlreadyInitialized), errors.Is(err, ErrNotInitialized):
		return ExitUsage
	default:
		return ExitFailure
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "command failure"
	}
	return strings.Join(parts, ": ")
}
