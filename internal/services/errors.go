package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"herdscreen/internal/api"
)

var (
	ErrConnectivity       = errors.New("backend unreachable")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrSubmission         = errors.New("submission failed")
	ErrSubmissionInFlight = errors.New("a batch submission is already in flight")
	ErrNotFound           = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrConnectivity
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsConnectivity reports whether err is a network-level failure talking to the
// backend: dial and read errors, request timeouts, or an explicit
// ErrConnectivity marker.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ValidationError rejects a local file before any request is sent.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SubmissionError carries the user-visible reason a job was rejected or
// failed. Network and logical failures share this type; only Message differs.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmission}
	}
	return []error{ErrSubmission, e.Err}
}

// NewSubmissionError picks the server message when it has text and the
// fallback otherwise, so the message is never empty.
func NewSubmissionError(message, fallback string, cause error) *SubmissionError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = strings.TrimSpace(fallback)
	}
	if message == "" {
		message = ErrSubmission.Error()
	}
	return &SubmissionError{Message: message, Err: cause}
}

// PartialBatchFailure reports a batch upload where some files were accepted
// and others were not.
type PartialBatchFailure struct {
	Succeeded []string
	Failed    []api.FailedFile
}

func (e *PartialBatchFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, f.Filename)
	}
	return fmt.Sprintf("%d file(s) uploaded, %d failed: %s", len(e.Succeeded), len(e.Failed), strings.Join(names, ", "))
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
		return "client failure"
	}
	return strings.Join(parts, ": ")
}
