package audio

import (
	"log/slog"
	"sync"
	"time"
)

// ChunkSamples is the streaming chunk size: 3200 samples is 0.2 s of audio
// at the 16 kHz target rate.
const ChunkSamples = 3200

// chunkQueueDepth bounds the chunk channel. A slow consumer backpressures
// the converter goroutine, never the device callback.
const chunkQueueDepth = 16

// StreamingRecorder captures like Recorder but additionally converts the
// take to canonical 16 kHz mono PCM while recording, emitting ~0.2 s chunks
// on a channel for a live transcription session. Stop still returns the
// whole take as a WAV file so a batch backend can be used as fallback.
type StreamingRecorder struct {
	rec *Recorder

	mu        sync.Mutex
	chunks    chan []byte
	done      chan struct{}
	stopped   bool
	converted int       // raw samples already drained into pending
	pending   []float32 // canonical samples not yet emitted
	wg        sync.WaitGroup
}

// NewStreamingRecorder creates a streaming recorder. Call Close() when done.
func NewStreamingRecorder() (*StreamingRecorder, error) {
	rec, err := NewRecorder()
	if err != nil {
		return nil, err
	}
	return &StreamingRecorder{rec: rec}, nil
}

// Start begins capture and returns the channel of PCM16 chunks. The channel
// is closed after Stop has flushed the final partial chunk.
func (s *StreamingRecorder) Start() (<-chan []byte, error) {
	if err := s.rec.Start(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chunks = make(chan []byte, chunkQueueDepth)
	s.done = make(chan struct{})
	s.stopped = false
	s.converted = 0
	s.pending = s.pending[:0]
	chunks := s.chunks
	s.mu.Unlock()

	s.wg.Add(1)
	go s.convertLoop()

	return chunks, nil
}

// Stop ends the capture, flushes and closes the chunk channel, and returns
// the complete take as a 16 kHz mono WAV file for the batch fallback path.
// Safe to call on a stopped recorder.
func (s *StreamingRecorder) Stop() ([]byte, error) {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	done := s.done
	s.mu.Unlock()

	if alreadyStopped || done == nil {
		return EncodeWAV(nil, TargetSampleRate)
	}

	s.rec.mu.Lock()
	s.rec.recording = false
	device := s.rec.device
	s.rec.device = nil
	s.rec.mu.Unlock()

	if device != nil {
		device.Uninit()
		time.Sleep(stopGrace)
	}

	close(done)
	s.wg.Wait()

	s.rec.mu.Lock()
	raw := make([]float32, len(s.rec.buf))
	copy(raw, s.rec.buf)
	cfg := s.rec.cfg
	s.rec.mu.Unlock()

	if cfg.Channels == 0 {
		return EncodeWAV(nil, TargetSampleRate)
	}

	mono := Downmix(raw, cfg.Channels)
	resampled := Resample(mono, cfg.SampleRate, TargetSampleRate)
	slog.Info("streaming recording stopped",
		"raw_samples", len(raw), "resampled_samples", len(resampled))

	return EncodeWAV(resampled, TargetSampleRate)
}

// Close releases the capture device and context.
func (s *StreamingRecorder) Close() error {
	return s.rec.Close()
}

// convertLoop periodically drains newly captured raw samples, converts them
// to canonical form and emits full chunks. It never touches the buffer
// except under the recorder mutex, and never holds that mutex during
// conversion.
func (s *StreamingRecorder) convertLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drain(false)
		case <-s.done:
			s.drain(true)
			close(s.chunks)
			return
		}
	}
}

// drain pulls raw samples appended since the last call, converts them and
// emits every complete chunk. With final set, the trailing partial chunk is
// emitted too.
func (s *StreamingRecorder) drain(final bool) {
	s.rec.mu.Lock()
	cfg := s.rec.cfg
	n := len(s.rec.buf) - s.converted
	if cfg.Channels > 0 && !final {
		n -= n % cfg.Channels // never split a frame mid-drain
	}
	var batch []float32
	if n > 0 {
		batch = make([]float32, n)
		copy(batch, s.rec.buf[s.converted:s.converted+n])
		s.converted += n
	}
	s.rec.mu.Unlock()

	if len(batch) > 0 && cfg.Channels > 0 {
		mono := Downmix(batch, cfg.Channels)
		s.pending = append(s.pending, Resample(mono, cfg.SampleRate, TargetSampleRate)...)
	}

	for len(s.pending) >= ChunkSamples {
		s.emit(s.pending[:ChunkSamples])
		s.pending = s.pending[ChunkSamples:]
	}
	if final && len(s.pending) > 0 {
		s.emit(s.pending)
		s.pending = s.pending[:0]
	}
}

func (s *StreamingRecorder) emit(samples []float32) {
	s.chunks <- EncodePCM16(samples)
}
