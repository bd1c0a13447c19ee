package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false, // Disable jitter for predictable testing
		LogRetries: false,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}
	if config.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay=1s, got %v", config.BaseDelay)
	}
	if config.MaxDelay != 30*time.Second {
		t.Errorf("Expected MaxDelay=30s, got %v", config.MaxDelay)
	}
	if !config.Jitter || !config.LogRetries {
		t.Error("Expected Jitter and LogRetries enabled")
	}
}

func TestDatabaseRetryConfig(t *testing.T) {
	config := DatabaseRetryConfig()

	if config.MaxRetries != 6 {
		t.Errorf("Expected MaxRetries=6, got %d", config.MaxRetries)
	}
	if config.BaseDelay != 500*time.Millisecond {
		t.Errorf("Expected BaseDelay=500ms, got %v", config.BaseDelay)
	}
	if config.MaxDelay != 10*time.Second {
		t.Errorf("Expected MaxDelay=10s, got %v", config.MaxDelay)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	result := RetryWithBackoff(context.Background(), fastConfig(2), "noop", func() error {
		return nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if result.LastError != nil {
		t.Errorf("Expected no error, got %v", result.LastError)
	}
	if len(result.RetryReasons) != 0 {
		t.Errorf("Expected no retry reasons, got %d", len(result.RetryReasons))
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	result := RetryWithBackoff(context.Background(), fastConfig(3), "flaky", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary failure")
		}
		return nil
	})

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if len(result.RetryReasons) != 2 {
		t.Errorf("Expected 2 retry reasons, got %d", len(result.RetryReasons))
	}
	if result.TotalDuration == 0 {
		t.Error("Expected non-zero total duration")
	}
}

func TestRetryWithBackoff_AllAttemptsFailure(t *testing.T) {
	expectedError := errors.New("persistent failure")
	result := RetryWithBackoff(context.Background(), fastConfig(2), "broken", func() error {
		return expectedError
	})

	if result.Success {
		t.Error("Expected success=false")
	}
	if result.Attempts != 3 { // MaxRetries + 1
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if result.LastError != expectedError {
		t.Errorf("Expected last error to be %v, got %v", expectedError, result.LastError)
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	bad := errors.New("password authentication failed")
	attempts := 0
	result := RetryWithBackoff(context.Background(), fastConfig(5), "auth", func() error {
		attempts++
		return Permanent(bad)
	})

	if result.Success {
		t.Error("Expected success=false")
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
	if result.LastError != bad {
		t.Errorf("Expected unwrapped error %v, got %v", bad, result.LastError)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	config := fastConfig(5)
	config.BaseDelay = 100 * time.Millisecond
	config.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := RetryWithBackoff(ctx, config, "slow", func() error {
		return errors.New("always fails")
	})

	if result.Success {
		t.Error("Expected success=false due to context cancellation")
	}
	if result.LastError != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", result.LastError)
	}
	if result.Attempts > 2 {
		t.Errorf("Expected few attempts due to quick timeout, got %d", result.Attempts)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	}

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := calculateDelay(config, attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}

	if delay := calculateDelay(config, 10); delay != 10*time.Second {
		t.Errorf("Expected delay10=10s (capped), got %v", delay)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	config := RetryConfig{
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	expectedBase := 2 * time.Second
	tolerance := 200 * time.Millisecond // 10% of 2s
	seen := map[time.Duration]bool{}
	for i := 0; i < 5; i++ {
		d := calculateDelay(config, 1)
		if abs(d-expectedBase) > tolerance {
			t.Errorf("delay %v too far from expected %v", d, expectedBase)
		}
		seen[d] = true
	}
	if len(seen) == 1 {
		t.Error("Expected some variation with jitter enabled")
	}
}

func TestIsRetryableError(t *testing.T) {
	retryableErrors := []error{
		errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
		errors.New("connection timeout"),
		errors.New("pq: the database system is starting up"),
		errors.New("service http 503: unavailable"),
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("lookup db: no such host"),
		context.DeadlineExceeded,
		fmt.Errorf("ping: %w", context.DeadlineExceeded),
	}
	for _, err := range retryableErrors {
		if !IsRetryableError(err) {
			t.Errorf("Expected %v to be retryable", err)
		}
	}

	nonRetryableErrors := []error{
		errors.New("invalid input"),
		errors.New("pq: password authentication failed for user \"pos\""),
		errors.New("HTTP 400 Bad Request"),
		errors.New("HTTP 404 Not Found"),
		context.Canceled,
	}
	for _, err := range nonRetryableErrors {
		if IsRetryableError(err) {
			t.Errorf("Expected %v to NOT be retryable", err)
		}
	}

	if IsRetryableError(nil) {
		t.Error("Expected nil error to NOT be retryable")
	}
}

func TestRetryWithBackoffAndReason(t *testing.T) {
	attempts := 0
	result := RetryWithBackoffAndReason(context.Background(), fastConfig(2), "reasons", func() (error, string) {
		attempts++
		switch attempts {
		case 1:
			return errors.New("network timeout"), "network_timeout"
		case 2:
			return errors.New("rate limited"), "rate_limit"
		default:
			return nil, "success"
		}
	})

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	expectedReasons := []string{"network_timeout", "rate_limit"}
	if len(result.RetryReasons) != len(expectedReasons) {
		t.Fatalf("Expected %d retry reasons, got %d", len(expectedReasons), len(result.RetryReasons))
	}
	for i, expected := range expectedReasons {
		if result.RetryReasons[i] != expected {
			t.Errorf("Expected retry reason %d to be %s, got %s", i, expected, result.RetryReasons[i])
		}
	}
}

// Helper function to calculate absolute difference between durations
func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
