package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", E(CodeInvalidArgument, "op", "bad", nil), http.StatusBadRequest},
		{"forbidden", E(CodeForbidden, "op", "no", nil), http.StatusForbidden},
		{"not found", E(CodeNotFound, "op", "missing", ErrNotFound), http.StatusNotFound},
		{"conflict", E(CodeConflict, "op", "raced", nil), http.StatusConflict},
		{"unavailable", E(CodeUnavailable, "op", "down", nil), http.StatusServiceUnavailable},
		{"bare sentinel", fmt.Errorf("repo: %w", ErrNotFound), http.StatusNotFound},
		{"bare conflict", ErrConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := E(CodeNotFound, "EngineService.NextTrial", "session not found", ErrNotFound)
	if got := err.Error(); got != "EngineService.NextTrial: session not found: not found" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected wrapped sentinel")
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatal("expected NOT_FOUND code")
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{0.35, 3, 0.35},
		{0.57749, 3, 0.577},
		{1234.56, 1, 1234.6},
		{0.66666666, 4, 0.6667},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
