package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "Nil", err: nil, expected: ExitOK},
		{name: "Usage", err: Usage("invalid date %q", "31/02/2025"), expected: ExitUsage},
		{name: "Wrapped Usage", err: fmt.Errorf("export: %w", Usage("too many arguments")), expected: ExitUsage},
		{name: "Config", err: Config(base), expected: ExitFailure},
		{name: "Remote", err: Remote("send alert", base), expected: ExitFailure},
		{name: "Plain", err: base, expected: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.expected {
				t.Errorf("Expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestJobError_Unwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := Remote("create tab", base)

	if !errors.Is(err, base) {
		t.Error("Expected wrapped error to match base")
	}
	if err.Error() != "create tab: connection refused" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if KindOf(err) != KindRemote {
		t.Errorf("Expected KindRemote, got %v", KindOf(err))
	}
}
