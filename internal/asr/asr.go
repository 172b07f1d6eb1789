// Package asr provides one-shot "audio bytes in, text out" clients for two
// unrelated transcription services, plus an orchestrator that races them.
package asr

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// connectTimeout bounds connection establishment to a backend.
	connectTimeout = 5 * time.Second
	// requestTimeout bounds one whole transcription request.
	requestTimeout = 10 * time.Second

	// retryAttempts is the primary client's total attempt budget.
	retryAttempts = 3
	// retryBackoff separates attempts. Fixed, no jitter, no growth: the
	// secondary backend covers the slow-failure case instead.
	retryBackoff = 500 * time.Millisecond
)

// Client is a one-shot transcription backend.
type Client interface {
	// Name identifies the backend in logs and combined errors.
	Name() string
	// Transcribe sends a canonical WAV recording and returns the transcript.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// APIError is a non-success response from a batch backend.
type APIError struct {
	Backend string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asr: %s request failed (%d): %s", e.Backend, e.Status, e.Body)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}
}

// trailingPunctuation is stripped from the end of batch transcripts. Leading
// and interior punctuation is kept, unlike the streaming path.
const trailingPunctuation = "。，！？、；：“”‘’.,!?;:"

func trimTrailingPunctuation(s string) string {
	return strings.TrimRight(s, trailingPunctuation)
}
