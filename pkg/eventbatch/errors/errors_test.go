package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.category.String(); got != tt.expected {
				t.Errorf("Category(%d).String() = %s, want %s", tt.category, got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 408", &HTTPError{StatusCode: 408}, CategoryTransient},
		{"HTTP 503", &HTTPError{StatusCode: 503}, CategoryTransient},
		{"HTTP 500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"HTTP 400", &HTTPError{StatusCode: 400}, CategoryPermanent},
		{"HTTP 401", &HTTPError{StatusCode: 401}, CategoryPermanent},
		{"HTTP 404", &HTTPError{StatusCode: 404}, CategoryPermanent},
		{"timeout error", &TimeoutError{Operation: "deliver", Duration: "5s"}, CategoryTransient},
		{"deadline exceeded", context.DeadlineExceeded, CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"categorized permanent", Permanent(errors.New("bad"), "deliver"), CategoryPermanent},
		{"wrapped HTTP", fmt.Errorf("send: %w", &HTTPError{StatusCode: 401}), CategoryPermanent},
		{"unknown error", errors.New("connection reset"), CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&HTTPError{StatusCode: 502}) {
		t.Error("expected 502 to be retryable")
	}
	if IsRetryable(&HTTPError{StatusCode: 403}) {
		t.Error("expected 403 not to be retryable")
	}
}

func TestCategorizedError_Error(t *testing.T) {
	base := errors.New("boom")

	withCtx := Transient(base, "deliver batch")
	if got := withCtx.Error(); got != "deliver batch: boom (category: transient)" {
		t.Errorf("unexpected message: %s", got)
	}
	if !errors.Is(withCtx, base) {
		t.Error("expected Unwrap to expose the underlying error")
	}

	noCtx := &CategorizedError{Err: base, Category: CategoryPermanent}
	if got := noCtx.Error(); got != "boom (category: permanent)" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestHTTPError_Error(t *testing.T) {
	e := &HTTPError{StatusCode: 503, Message: "unavailable", Endpoint: "http://collector/events"}
	if got := e.Error(); got != "HTTP 503 at http://collector/events: unavailable" {
		t.Errorf("unexpected message: %s", got)
	}
	e.Endpoint = ""
	if got := e.Error(); got != "HTTP 503: unavailable" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	tests := []struct {
		failures int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("failures=%d", tt.failures), func(t *testing.T) {
			if got := b.Delay(tt.failures); got != tt.expected {
				t.Errorf("Delay(%d) = %s, want %s", tt.failures, got, tt.expected)
			}
		})
	}
}

func TestBackoff_ZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	if got := b.Delay(1); got != DefaultBackoff.Initial {
		t.Errorf("Delay(1) = %s, want %s", got, DefaultBackoff.Initial)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		d := b.Delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %s outside [500ms, 1.5s]", d)
		}
	}
}
