package services_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"

	"herdscreen/internal/api"
	"herdscreen/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrConnectivity, "client", "health", "request failed", base)
	if !errors.Is(err, services.ErrConnectivity) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"client", "health", "request failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestIsConnectivity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marker", services.Wrap(services.ErrConnectivity, "probe", "", "", nil), true},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), true},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("eof")}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"submission", services.NewSubmissionError("disk full", "", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsConnectivity(tt.err); got != tt.want {
				t.Fatalf("IsConnectivity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmissionErrorMessage(t *testing.T) {
	tests := []struct {
		message  string
		fallback string
		want     string
	}{
		{"disk full", "batch filter failed", "disk full"},
		{"  ", "batch filter failed", "batch filter failed"},
		{"", "", "submission failed"},
	}
	for _, tt := range tests {
		err := services.NewSubmissionError(tt.message, tt.fallback, nil)
		if err.Error() != tt.want {
			t.Fatalf("message = %q, want %q", err.Error(), tt.want)
		}
		if !errors.Is(err, services.ErrSubmission) {
			t.Fatal("expected ErrSubmission marker")
		}
	}
}

func TestSubmissionErrorKeepsCause(t *testing.T) {
	cause := &net.OpError{Op: "read", Err: errors.New("reset")}
	err := services.NewSubmissionError("connection lost", "", cause)
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatal("expected cause to be reachable")
	}
}

func TestValidationError(t *testing.T) {
	var err error = &services.ValidationError{Path: "herd.csv", Reason: "unsupported file type"}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatal("expected ErrValidation marker")
	}
	if err.Error() != "herd.csv: unsupported file type" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPartialBatchFailureMessage(t *testing.T) {
	err := &services.PartialBatchFailure{
		Succeeded: []string{"a.xlsx", "b.xlsx"},
		Failed:    []api.FailedFile{{Filename: "c.zip", Error: "corrupt archive"}},
	}
	if got := err.Error(); got != "2 file(s) uploaded, 1 failed: c.zip" {
		t.Fatalf("unexpected message %q", got)
	}
}
