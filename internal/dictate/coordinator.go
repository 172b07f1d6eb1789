// Package dictate coordinates one push-to-talk utterance at a time: it owns
// the capture engine, the streaming session and the batch fallback, and
// exposes guarded start/stop/cancel operations to the hotkey loop.
package dictate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/voxkey/internal/asr"
	"github.com/chaz8081/voxkey/internal/audio"
	"github.com/chaz8081/voxkey/internal/config"
	"github.com/chaz8081/voxkey/internal/realtime"
)

var (
	// ErrAlreadyRunning means StartUtterance was called mid-utterance.
	ErrAlreadyRunning = errors.New("dictate: utterance already in progress")
	// ErrNotRunning means StopUtterance was called with nothing recording.
	ErrNotRunning = errors.New("dictate: no utterance in progress")
)

// Session is the slice of a realtime session the coordinator drives.
type Session interface {
	SendAudio(pcm []byte) error
	Commit() error
	WaitForResult(ctx context.Context) (string, error)
	Close()
}

// streamCapture is the streaming recorder surface (audio.StreamingRecorder).
type streamCapture interface {
	Start() (<-chan []byte, error)
	Stop() ([]byte, error)
	Close() error
}

// bufferCapture is the one-shot recorder surface (audio.Recorder).
type bufferCapture interface {
	Start() error
	StopToMemory() ([]byte, error)
	Close() error
}

// utterance is the in-flight state of one recording.
type utterance struct {
	session  Session
	pumpDone chan struct{}
}

// Coordinator owns the capture and transcription resources for the
// application. All state transitions go through its mutex; there are no
// process-wide flags.
type Coordinator struct {
	useRealtime bool

	streamRec    streamCapture
	batchRec     bufferCapture
	startSession func(ctx context.Context) (Session, error)
	transcribe   func(ctx context.Context, wav []byte) (string, error)

	mu      sync.Mutex
	current *utterance
	running bool
}

// New builds a Coordinator from the ASR configuration, wiring the real
// capture devices and backend clients.
func New(cfg config.ASRConfig) (*Coordinator, error) {
	c := &Coordinator{useRealtime: cfg.UseRealtime}

	if cfg.UseRealtime {
		rec, err := audio.NewStreamingRecorder()
		if err != nil {
			return nil, err
		}
		c.streamRec = rec
	} else {
		rec, err := audio.NewRecorder()
		if err != nil {
			return nil, err
		}
		c.batchRec = rec
	}

	rtClient := realtime.NewClient(cfg.DashScopeAPIKey)
	rtClient.Language = cfg.Language
	c.startSession = func(ctx context.Context) (Session, error) {
		return rtClient.StartSession(ctx)
	}

	primary := asr.NewQwenClient(cfg.DashScopeAPIKey)
	if cfg.SiliconFlowAPIKey != "" {
		secondary := asr.NewSenseVoiceClient(cfg.SiliconFlowAPIKey)
		c.transcribe = func(ctx context.Context, wav []byte) (string, error) {
			return asr.TranscribeWithFallback(ctx, primary, secondary, wav)
		}
	} else {
		c.transcribe = primary.TranscribeWithRetry
	}

	return c, nil
}

// StartUtterance begins capturing one utterance. In realtime mode it opens
// a streaming session and pumps chunks into it as they are captured; if the
// session cannot be opened, capture continues anyway and the batch path
// takes over at stop.
func (c *Coordinator) StartUtterance(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	if !c.useRealtime {
		if err := c.batchRec.Start(); err != nil {
			c.reset()
			return err
		}
		return nil
	}

	var sess Session
	if s, err := c.startSession(ctx); err != nil {
		slog.Warn("realtime session unavailable, will use batch path", "error", err)
	} else {
		sess = s
	}

	chunks, err := c.streamRec.Start()
	if err != nil {
		if sess != nil {
			sess.Close()
		}
		c.reset()
		return err
	}

	u := &utterance{session: sess, pumpDone: make(chan struct{})}
	go pumpChunks(sess, chunks, u.pumpDone)

	c.mu.Lock()
	c.current = u
	c.mu.Unlock()
	return nil
}

// pumpChunks forwards captured chunks to the session until the capture
// channel closes. With no session the chunks are drained and discarded so
// the converter never backs up.
func pumpChunks(sess Session, chunks <-chan []byte, done chan<- struct{}) {
	defer close(done)
	sent := 0
	for chunk := range chunks {
		if sess == nil {
			continue
		}
		if err := sess.SendAudio(chunk); err != nil {
			slog.Error("sending audio chunk", "error", err)
			sess = nil // keep draining so capture can finish cleanly
			continue
		}
		sent++
	}
	slog.Debug("chunk pump finished", "chunks_sent", sent)
}

// StopUtterance ends the capture and resolves it to one transcript. The
// streaming result is preferred; any streaming failure falls back to the
// batch race over the full recording. The coordinator is ready for a new
// utterance as soon as capture has stopped.
func (c *Coordinator) StopUtterance(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return "", ErrNotRunning
	}
	u := c.current
	c.current = nil
	c.mu.Unlock()

	if !c.useRealtime {
		wav, err := c.batchRec.StopToMemory()
		c.reset()
		if err != nil {
			return "", err
		}
		return c.transcribe(ctx, wav)
	}

	// Stop capture first; the full take is the batch fallback input.
	wav, stopErr := c.streamRec.Stop()
	if u != nil {
		<-u.pumpDone // all captured chunks are on the wire
	}
	c.reset()

	if u == nil || u.session == nil {
		if stopErr != nil {
			return "", stopErr
		}
		slog.Info("no live session, using batch path")
		return c.transcribe(ctx, wav)
	}

	sess := u.session
	defer sess.Close()

	if err := sess.Commit(); err != nil {
		slog.Warn("commit failed, using batch path", "error", err)
		return c.transcribe(ctx, wav)
	}

	text, err := sess.WaitForResult(ctx)
	if err != nil {
		slog.Warn("streaming result failed, using batch path", "error", err)
		return c.transcribe(ctx, wav)
	}
	return text, nil
}

// Cancel abandons the in-flight utterance without transcribing. Cleanup is
// best-effort and ordered: capture stops, the chunk pump drains, the
// session closes. A failing step never prevents the following ones.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	u := c.current
	c.current = nil
	running := c.running
	c.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	var firstErr error
	if c.useRealtime {
		if _, err := c.streamRec.Stop(); err != nil {
			firstErr = err
			slog.Error("stopping capture during cancel", "error", err)
		}
	} else {
		if _, err := c.batchRec.StopToMemory(); err != nil {
			firstErr = err
			slog.Error("stopping capture during cancel", "error", err)
		}
	}

	if u != nil {
		<-u.pumpDone
		if u.session != nil {
			u.session.Close()
		}
	}

	c.reset()
	slog.Info("utterance cancelled")
	return firstErr
}

// IsRunning reports whether an utterance is being captured.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close releases the capture device. Any in-flight utterance is cancelled.
func (c *Coordinator) Close() error {
	if c.IsRunning() {
		if err := c.Cancel(context.Background()); err != nil {
			slog.Error("cancelling during close", "error", err)
		}
	}

	var err error
	if c.streamRec != nil {
		err = c.streamRec.Close()
	}
	if c.batchRec != nil {
		if cerr := c.batchRec.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("dictate: closing capture: %w", err)
	}
	return nil
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}
