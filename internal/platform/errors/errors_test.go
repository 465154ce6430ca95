package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeActivityFetch, "activity store unreachable")
	wrapped := fmt.Errorf("build report: %w", base)

	if !stderrors.Is(wrapped, New(CodeActivityFetch, "other message")) {
		t.Fatal("expected code match through wrapped chain")
	}
	if stderrors.Is(wrapped, New(CodePersistenceWrite, "other code")) {
		t.Fatal("expected mismatch for different code")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodePersistenceWrite, "save achievement states", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "save achievement states" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"domain error", New(CodeNotFound, "missing"), CodeNotFound},
		{"wrapped domain error", fmt.Errorf("outer: %w", New(CodeActivityFetch, "fetch")), CodeActivityFetch},
		{"plain error", stderrors.New("plain"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeActivityNegativeCO2, http.StatusBadRequest},
		{CodeGoalTargetNotPositive, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeActivityFetch, http.StatusServiceUnavailable},
		{CodePersistenceWrite, http.StatusServiceUnavailable},
		{CodeUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
