package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// raceSlot holds the secondary backend's eventual result. Written once by
// the secondary task, read only at the primary's retry boundaries.
type raceSlot struct {
	mu   sync.Mutex
	set  bool
	text string
	err  error
	done chan struct{}
}

func newRaceSlot() *raceSlot {
	return &raceSlot{done: make(chan struct{})}
}

func (s *raceSlot) put(text string, err error) {
	s.mu.Lock()
	s.text, s.err, s.set = text, err, true
	s.mu.Unlock()
	close(s.done)
}

func (s *raceSlot) get() (text string, err error, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.err, s.set
}

// TranscribeWithFallback races the primary client's retry loop against a
// single secondary attempt over the same audio.
//
// The secondary starts immediately as an independent task. Before each
// primary retry (never before the first attempt) the secondary's slot is
// checked: an already-successful secondary wins and further primary retries
// are abandoned; an already-failed secondary is ignored. A primary success
// returns at once and leaves the secondary task to finish on its own. Only
// after the primary is exhausted does the orchestrator block on the
// secondary, returning its result or a combined error naming both failures.
func TranscribeWithFallback(ctx context.Context, primary, secondary Client, wav []byte) (string, error) {
	slot := newRaceSlot()
	go func() {
		text, err := secondary.Transcribe(ctx, wav)
		if err != nil {
			slog.Error("secondary transcription failed", "backend", secondary.Name(), "error", err)
		} else {
			slog.Info("secondary transcription succeeded", "backend", secondary.Name())
		}
		slot.put(text, err)
	}()

	var primaryErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			if text, err, ok := slot.get(); ok {
				if err == nil {
					slog.Info("using secondary result before primary retry",
						"backend", secondary.Name(), "attempt", attempt+1)
					return text, nil
				}
				slog.Warn("secondary also failed, continuing primary retries",
					"backend", secondary.Name(), "error", err)
			}
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := primary.Transcribe(ctx, wav)
		if err == nil {
			return text, nil
		}
		slog.Error("primary transcription attempt failed",
			"backend", primary.Name(), "attempt", attempt+1, "of", retryAttempts, "error", err)
		primaryErr = err
	}

	slog.Warn("primary exhausted, waiting for secondary", "backend", secondary.Name())
	select {
	case <-slot.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	text, err, _ := slot.get()
	if err == nil {
		return text, nil
	}
	return "", fmt.Errorf("asr: all backends failed: %s: %v; %s: %v",
		primary.Name(), primaryErr, secondary.Name(), err)
}
