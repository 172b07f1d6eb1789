package audio

import "testing"

// drainAll runs a conversion drain against a hand-filled capture buffer and
// collects the emitted chunks, bypassing the device layer.
func drainAll(t *testing.T, raw []float32, cfg CaptureConfig, final bool) [][]byte {
	t.Helper()
	s := &StreamingRecorder{rec: &Recorder{}}
	s.rec.cfg = cfg
	s.rec.buf = raw
	s.chunks = make(chan []byte, 64)

	s.drain(final)
	close(s.chunks)

	var chunks [][]byte
	for c := range s.chunks {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestStreamDrainChunkSizes(t *testing.T) {
	// 0.5 s of stereo 48 kHz: 24000 mono frames -> 8000 canonical samples
	// -> two full 3200-sample chunks plus a 1600-sample tail.
	raw := make([]float32, 48000)
	cfg := CaptureConfig{SampleRate: 48000, Channels: 2}

	chunks := drainAll(t, raw, cfg, true)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != ChunkSamples*2 || len(chunks[1]) != ChunkSamples*2 {
		t.Errorf("full chunk sizes = %d, %d bytes, want %d",
			len(chunks[0]), len(chunks[1]), ChunkSamples*2)
	}
	if len(chunks[2]) != 1600*2 {
		t.Errorf("tail chunk size = %d bytes, want %d", len(chunks[2]), 1600*2)
	}
}

func TestStreamDrainHoldsPartialChunk(t *testing.T) {
	// 0.1 s at 16 kHz mono is half a chunk; without final it stays pending.
	raw := make([]float32, 1600)
	cfg := CaptureConfig{SampleRate: 16000, Channels: 1}

	chunks := drainAll(t, raw, cfg, false)
	if len(chunks) != 0 {
		t.Errorf("chunk count = %d, want 0 (partial chunk held back)", len(chunks))
	}
}

func TestStreamDrainPreservesOrder(t *testing.T) {
	// A ramp at the target rate passes through conversion untouched, so the
	// chunk stream must reproduce it exactly, in order.
	raw := make([]float32, ChunkSamples*2)
	for i := range raw {
		raw[i] = float32(i%200) / 200
	}
	cfg := CaptureConfig{SampleRate: 16000, Channels: 1}

	chunks := drainAll(t, raw, cfg, true)
	if len(chunks) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(chunks))
	}

	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	want := EncodePCM16(raw)
	if len(joined) != len(want) {
		t.Fatalf("joined length = %d, want %d", len(joined), len(want))
	}
	for i := range want {
		if joined[i] != want[i] {
			t.Fatalf("joined[%d] = %#x, want %#x", i, joined[i], want[i])
		}
	}
}
