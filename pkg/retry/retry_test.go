package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fastConfig - конфигурация без заметных задержек для тестов
func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// ============================================================
// Тесты Do / DoWithResult
// ============================================================

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig(3))

	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	}, fastConfig(5))

	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	wantErr := errors.New("persistent failure")

	err := Do(context.Background(), func() error {
		calls++
		return wantErr
	}, fastConfig(4))

	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want last error", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (MaxRetries)", calls)
	}
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	got, err := DoWithResult(context.Background(), func() ([]string, error) {
		return []string{"o1", "o2"}, nil
	}, fastConfig(3))

	if err != nil {
		t.Fatalf("DoWithResult error: %v", err)
	}
	if len(got) != 2 || got[0] != "o1" {
		t.Errorf("result = %v", got)
	}
}

func TestDoWithResult_ContextCancelsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoWithResult(ctx, func() (int, error) {
		calls++
		cancel() // отменяем после первой попытки
		return 0, errors.New("failure")
	}, Config{
		MaxRetries:   10,
		InitialDelay: time.Hour, // без отмены тест бы завис
	})

	if err == nil {
		t.Fatal("want error after context cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries after cancel)", calls)
	}
}

func TestDo_RetryIfStopsEarly(t *testing.T) {
	calls := 0
	cfg := fastConfig(5)
	cfg.RetryIf = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}

	err := Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("wrapped: %w", context.Canceled)
	}, cfg)

	if err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable error)", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	Do(context.Background(), func() error {
		return errors.New("failure")
	}, cfg)

	// 3 попытки = 2 retry (перед последней попыткой нет ожидания)
	if len(attempts) != 2 {
		t.Errorf("OnRetry calls = %v, want [1 2]", attempts)
	}
}

// ============================================================
// Тесты calculateDelay
// ============================================================

func TestCalculateDelay_ExponentialGrowth(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0, // детерминизм
	}
	cfg.validate()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second}, // потолок MaxDelay
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := cfg.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCalculateDelay_JitterWithinBounds(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
	cfg.validate()

	for i := 0; i < 100; i++ {
		got := cfg.calculateDelay(0)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("calculateDelay with 20%% jitter = %v, want 80ms..120ms", got)
		}
	}
}

// ============================================================
// Тесты фильтров ошибок
// ============================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error defaults to retryable", errors.New("boom"), true},
		{"permanent error", Permanent(errors.New("bad request")), false},
		{"wrapped permanent error", fmt.Errorf("call failed: %w", Permanent(errors.New("bad"))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryIfNotContext(t *testing.T) {
	if RetryIfNotContext(context.Canceled) {
		t.Error("context.Canceled must not be retryable")
	}
	if RetryIfNotContext(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded must not be retryable")
	}
	if !RetryIfNotContext(errors.New("connection refused")) {
		t.Error("network error must be retryable")
	}
}

func TestPermanent_NilPassthrough(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must return nil")
	}
}
