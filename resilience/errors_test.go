package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type statusErr struct{ retry bool }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) Retryable() bool { return e.retry }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"circuit open", ErrCircuitOpen, false},
		{"deadline", context.DeadlineExceeded, true},
		{"retryable says no", statusErr{retry: false}, false},
		{"retryable says yes", fmt.Errorf("wrap: %w", statusErr{retry: true}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
