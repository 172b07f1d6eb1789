package asr

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClient scripts a backend: fn receives the 1-based call number.
type fakeClient struct {
	name  string
	delay time.Duration
	fn    func(call int) (string, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.fn(call)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFallbackSecondaryWinsBeforeRetry(t *testing.T) {
	// Primary's first attempt is slow and fails; by the retry boundary the
	// secondary has already succeeded, so its text wins and the primary is
	// never retried.
	primary := &fakeClient{
		name:  "qwen",
		delay: 600 * time.Millisecond,
		fn:    func(int) (string, error) { return "", errors.New("boom") },
	}
	secondary := &fakeClient{
		name:  "sensevoice",
		delay: 50 * time.Millisecond,
		fn:    func(int) (string, error) { return "secondary text", nil },
	}

	text, err := TranscribeWithFallback(context.Background(), primary, secondary, nil)
	if err != nil {
		t.Fatalf("TranscribeWithFallback() error = %v", err)
	}
	if text != "secondary text" {
		t.Errorf("text = %q, want %q", text, "secondary text")
	}
	if got := primary.callCount(); got != 1 {
		t.Errorf("primary attempts = %d, want 1 (no retries after secondary win)", got)
	}
}

func TestFallbackPrimaryFirstAttemptWins(t *testing.T) {
	primary := &fakeClient{
		name: "qwen",
		fn:   func(int) (string, error) { return "primary text", nil },
	}
	secondary := &fakeClient{
		name:  "sensevoice",
		delay: 2 * time.Second,
		fn:    func(int) (string, error) { return "too late", nil },
	}

	start := time.Now()
	text, err := TranscribeWithFallback(context.Background(), primary, secondary, nil)
	if err != nil {
		t.Fatalf("TranscribeWithFallback() error = %v", err)
	}
	if text != "primary text" {
		t.Errorf("text = %q, want %q", text, "primary text")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("returned after %v; must not wait for the secondary task", elapsed)
	}
}

func TestFallbackSecondaryFailureContinuesRetries(t *testing.T) {
	primary := &fakeClient{
		name: "qwen",
		fn: func(call int) (string, error) {
			if call < 2 {
				return "", errors.New("transient")
			}
			return "primary eventually", nil
		},
	}
	secondary := &fakeClient{
		name: "sensevoice",
		fn:   func(int) (string, error) { return "", errors.New("secondary down") },
	}

	text, err := TranscribeWithFallback(context.Background(), primary, secondary, nil)
	if err != nil {
		t.Fatalf("TranscribeWithFallback() error = %v", err)
	}
	if text != "primary eventually" {
		t.Errorf("text = %q, want %q", text, "primary eventually")
	}
	if got := primary.callCount(); got != 2 {
		t.Errorf("primary attempts = %d, want 2", got)
	}
}

func TestFallbackPrimaryExhaustedUsesSecondary(t *testing.T) {
	primary := &fakeClient{
		name: "qwen",
		fn:   func(int) (string, error) { return "", errors.New("always down") },
	}
	secondary := &fakeClient{
		name:  "sensevoice",
		delay: 1800 * time.Millisecond, // still running when the primary gives up
		fn:    func(int) (string, error) { return "rescue", nil },
	}

	text, err := TranscribeWithFallback(context.Background(), primary, secondary, nil)
	if err != nil {
		t.Fatalf("TranscribeWithFallback() error = %v", err)
	}
	if text != "rescue" {
		t.Errorf("text = %q, want %q", text, "rescue")
	}
	if got := primary.callCount(); got != retryAttempts {
		t.Errorf("primary attempts = %d, want %d", got, retryAttempts)
	}
}

func TestFallbackBothFailCombinedError(t *testing.T) {
	primary := &fakeClient{
		name: "qwen",
		fn:   func(int) (string, error) { return "", errors.New("primary broke") },
	}
	secondary := &fakeClient{
		name: "sensevoice",
		fn:   func(int) (string, error) { return "", errors.New("secondary broke") },
	}

	_, err := TranscribeWithFallback(context.Background(), primary, secondary, nil)
	if err == nil {
		t.Fatal("TranscribeWithFallback() should fail when both backends fail")
	}
	for _, want := range []string{"qwen", "sensevoice", "primary broke", "secondary broke"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error %q missing %q", err, want)
		}
	}
}

func TestFallbackContextCancelled(t *testing.T) {
	primary := &fakeClient{
		name:  "qwen",
		delay: 5 * time.Second,
		fn:    func(int) (string, error) { return "", errors.New("slow") },
	}
	secondary := &fakeClient{
		name:  "sensevoice",
		delay: 5 * time.Second,
		fn:    func(int) (string, error) { return "", errors.New("slow") },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := TranscribeWithFallback(ctx, primary, secondary, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context deadline", err)
	}
}
