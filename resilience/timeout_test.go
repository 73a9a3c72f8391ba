package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestTimeout_Expires(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond})

	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestTimeout_PassesThrough(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	boom := errors.New("boom")

	if err := to.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("success error = %v", err)
	}
	if err := to.Execute(context.Background(), func(context.Context) error { return boom }); err != boom {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestTimeout_ParentCancelIsNotTimeout(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := to.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if errors.Is(err, ErrTimeout) {
		t.Errorf("parent cancellation reported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
