package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying with backoff (storage blips,
	// tool timeouts, temporary unavailability).
	ErrTransient = errors.New("transient failure")
	// ErrExternalTool marks external tool invocation failures; retryable.
	ErrExternalTool = errors.New("external tool error")
	// ErrTimeout marks deadline expirations against external collaborators; retryable.
	ErrTimeout = errors.New("timeout")
	// ErrContent marks corrupt or unsupported source material and embedding
	// dimensionality mismatches; never retried.
	ErrContent = errors.New("content error")
	// ErrValidation marks precondition failures inside the pipeline; never retried.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration; never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing records or objects; never retried.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later outcome classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether a stage error should be requeued with backoff.
// Unclassified errors are treated as transient so an unexpected failure never
// silently discards a video.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrContent),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

// Classification returns the short outcome label persisted with a failed video.
func Classification(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrContent):
		return "content"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "transient"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
