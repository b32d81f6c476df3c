package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

func TestRetryPolicy_Wrap(t *testing.T) {
	fast := RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, MaxAttempts: 4}

	tests := []struct {
		name      string
		errs      []error // returned by successive attempts; nil after exhaustion
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			errs:      nil,
			wantCalls: 1,
		},
		{
			name:      "transient then success",
			errs:      []error{domain.ErrTransientNetwork, domain.ErrTransientNetwork},
			wantCalls: 3,
		},
		{
			name:      "client rejection not retried",
			errs:      []error{domain.ErrClientRejected},
			wantCalls: 1,
			wantErr:   domain.ErrClientRejected,
		},
		{
			name:      "not found not retried",
			errs:      []error{domain.ErrLobbyNotFound},
			wantCalls: 1,
			wantErr:   domain.ErrLobbyNotFound,
		},
		{
			name:      "unclassified retried",
			errs:      []error{errors.New("weird"), nil},
			wantCalls: 2,
		},
		{
			name: "attempts exhausted",
			errs: []error{
				domain.ErrTransientNetwork, domain.ErrTransientNetwork,
				domain.ErrTransientNetwork, domain.ErrTransientNetwork,
				domain.ErrTransientNetwork,
			},
			wantCalls: 4,
			wantErr:   domain.ErrTransientNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			op := fast.Wrap(func(ctx context.Context) error {
				calls++
				if calls-1 < len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})

			err := op(context.Background())
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_Delays(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    3 * time.Millisecond,
		MaxAttempts: 5,
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
	}
	_ = p.Wrap(func(ctx context.Context) error { return domain.ErrTransientNetwork })(context.Background())

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{BaseDelay: time.Hour, MaxAttempts: 10}

	calls := 0
	op := p.Wrap(func(ctx context.Context) error {
		calls++
		cancel()
		return domain.ErrTransientNetwork
	})

	start := time.Now()
	err := op(ctx)
	if !errors.Is(err, domain.ErrTransientNetwork) {
		t.Errorf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled retry should not sleep")
	}
}

func TestRetryPolicy_CustomClassifier(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
		Retryable:   func(error) bool { return false },
	}
	calls := 0
	_ = p.Wrap(func(ctx context.Context) error {
		calls++
		return domain.ErrTransientNetwork
	})(context.Background())
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestQueue_WithRetryPolicy(t *testing.T) {
	q, _ := newTestQueue(t, Config{})

	calls := 0
	policy := RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 3}
	tk, _ := q.Enqueue("flaky", policy.Wrap(func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrTransientNetwork
		}
		return nil
	}), nil)

	if err := waitTicket(t, tk); err != nil {
		t.Errorf("error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
