package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
	ErrTransport          = errors.New("transport error")
	ErrResumeIncompatible = errors.New("resume incompatible")
	ErrTransient          = errors.New("transient failure")
)

// Exit codes reported by the CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatalConfiguration reports whether err must abort a run before any
// network activity. Validation failures of operator input count as
// configuration errors.
func IsFatalConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrResumeIncompatible)
}

// IsRetryable reports whether an operation that failed with err may succeed
// when attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || IsFatalConfiguration(err) {
		return false
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTransient)
}

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsFatalConfiguration(err):
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
