package realtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// resultTimeout bounds WaitForResult: a session that has not produced a
// terminal transcript event within this window is abandoned.
const resultTimeout = 10 * time.Second

// commandQueueDepth bounds the command queue. A full queue blocks the
// producer, which runs on its own goroutine anyway.
const commandQueueDepth = 100

// writeTimeout bounds each individual write so a peer that stops reading
// fails the session instead of parking the writer until the TCP stack
// gives up.
const writeTimeout = 10 * time.Second

var (
	// ErrTimeout means no transcription result arrived within the wait window.
	ErrTimeout = errors.New("realtime: transcription timed out")
	// ErrChannelClosed means a session queue or the connection shut down
	// before a result was delivered.
	ErrChannelClosed = errors.New("realtime: session closed before result")
	// ErrResultConsumed means WaitForResult was called a second time.
	ErrResultConsumed = errors.New("realtime: result already consumed")
)

type commandKind int

const (
	cmdSendAudio commandKind = iota
	cmdCommit
	cmdClose
)

type command struct {
	kind commandKind
	pcm  []byte
}

type result struct {
	text string
	err  error
}

// Session is one utterance's live connection to the streaming backend.
// Audio chunks and the commit flow through a FIFO command queue drained by a
// single writer goroutine; a reader goroutine accumulates transcript events
// and delivers exactly one result. Sessions are not reusable.
type Session struct {
	cmds    chan command
	results chan result
	done    chan struct{} // closed when the writer exits
	timeout time.Duration

	// writeTimeout bounds each connection write; shortened in tests.
	writeTimeout time.Duration

	consumed atomic.Bool
	closed   atomic.Bool
}

func newSession(conn *websocket.Conn, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = resultTimeout
	}
	s := &Session{
		cmds:         make(chan command, commandQueueDepth),
		results:      make(chan result, 1),
		done:         make(chan struct{}),
		timeout:      timeout,
		writeTimeout: writeTimeout,
	}
	go s.writeLoop(conn)
	go s.readLoop(conn)
	return s
}

// SendAudio enqueues a chunk of 16-bit 16 kHz mono PCM. Chunk order is
// preserved; a chunk enqueued before Commit is always written first.
func (s *Session) SendAudio(pcm []byte) error {
	select {
	case s.cmds <- command{kind: cmdSendAudio, pcm: pcm}:
		return nil
	case <-s.done:
		return fmt.Errorf("sending audio chunk: %w", ErrChannelClosed)
	}
}

// Commit tells the backend no more audio will arrive for this utterance and
// recognition should be finalized.
func (s *Session) Commit() error {
	select {
	case s.cmds <- command{kind: cmdCommit}:
		return nil
	case <-s.done:
		return fmt.Errorf("committing audio: %w", ErrChannelClosed)
	}
}

// WaitForResult blocks until the final transcript, a backend error, or the
// timeout. It must be called at most once per session.
func (s *Session) WaitForResult(ctx context.Context) (string, error) {
	if s.consumed.Swap(true) {
		return "", ErrResultConsumed
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res, ok := <-s.results:
		if !ok {
			return "", ErrChannelClosed
		}
		return res.text, res.err
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close tears the connection down. Safe to call from any state and more
// than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	select {
	case s.cmds <- command{kind: cmdClose}:
	case <-s.done:
	}
}

// writeLoop is the single owner of the connection's write half: commands are
// applied strictly in queue order.
func (s *Session) writeLoop(conn *websocket.Conn) {
	defer close(s.done)

	for cmd := range s.cmds {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		switch cmd.kind {
		case cmdSendAudio:
			ev := appendEvent(base64.StdEncoding.EncodeToString(cmd.pcm))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Error("writing audio chunk", "error", err)
				_ = conn.Close() // unblock the reader
				return
			}
		case cmdCommit:
			if err := conn.WriteJSON(commitEvent()); err != nil {
				slog.Error("writing commit", "error", err)
				_ = conn.Close()
				return
			}
			slog.Info("audio buffer committed")
		case cmdClose:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
			return
		}
	}
}

// readLoop consumes inbound events and accumulates transcript text. A
// completed event replaces the text outright, a delta appends, and
// response.done triggers delivery of whatever has accumulated, empty
// included. Delivery happens once; afterwards the loop exits.
func (s *Session) readLoop(conn *websocket.Conn) {
	var text string
	haveResult := false

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !haveResult {
				s.deliver(result{err: fmt.Errorf("%w: %v", ErrChannelClosed, err)})
			}
			return
		}

		ev, err := decodeServerEvent(data)
		if err != nil {
			slog.Warn("undecodable server event", "error", err)
			continue
		}

		switch ev.Type {
		case evSessionCreated, evSessionUpdated:
			slog.Debug("session acknowledged", "type", ev.Type)
		case evBufferCommitted:
			slog.Debug("buffer committed")
		case evTranscriptCompleted:
			text = ev.Transcript
			haveResult = true
		case evTranscriptDelta:
			text += ev.Delta
		case evTranscriptDone:
			if ev.Transcript != "" {
				text = ev.Transcript
			}
			haveResult = true
		case evResponseDone:
			haveResult = true
		case evError:
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			s.deliver(result{err: fmt.Errorf("realtime: backend error: %s", msg)})
			return
		default:
			slog.Debug("unhandled event type", "type", ev.Type)
		}

		if haveResult {
			s.deliver(result{text: stripPunctuation(text)})
			return
		}
	}
}

func (s *Session) deliver(res result) {
	select {
	case s.results <- res:
	default: // a result was already delivered
	}
}
