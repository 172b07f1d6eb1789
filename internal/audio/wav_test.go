package audio

import (
	"math"
	"testing"
)

func TestEncodeWAVContainerFields(t *testing.T) {
	samples := make([]float32, 1600) // 0.1s at 16 kHz
	data, err := EncodeWAV(samples, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	rate, channels, bits, n, err := WAVInfo(data)
	if err != nil {
		t.Fatalf("WAVInfo() error = %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if bits != 16 {
		t.Errorf("bit depth = %d, want 16", bits)
	}
	if n != len(samples) {
		t.Errorf("sample count = %d, want %d", n, len(samples))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0}
	data, err := EncodeWAV(samples, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if len(pcm) != len(samples) {
		t.Fatalf("DecodeWAV length = %d, want %d", len(pcm), len(samples))
	}
	want := []int16{0, 16384, -16384, 32767, -32767}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("pcm[%d] = %d, want %d", i, pcm[i], want[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	data, err := EncodeWAV(nil, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV(nil) error = %v", err)
	}
	_, _, _, n, err := WAVInfo(data)
	if err != nil {
		t.Fatalf("WAVInfo() error = %v", err)
	}
	if n != 0 {
		t.Errorf("sample count = %d, want 0", n)
	}
}

// TestCaptureConversionPipeline exercises the full stop-to-memory conversion:
// a 2 s constant tone captured at 48 kHz mono becomes a 16 kHz mono 16-bit
// WAV with exactly 2*48000/3 samples.
func TestCaptureConversionPipeline(t *testing.T) {
	raw := make([]float32, 2*48000)
	for i := range raw {
		raw[i] = 0.25
	}

	mono := Downmix(raw, 1)
	resampled := Resample(mono, 48000, TargetSampleRate)
	data, err := EncodeWAV(resampled, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	rate, channels, bits, n, err := WAVInfo(data)
	if err != nil {
		t.Fatalf("WAVInfo() error = %v", err)
	}
	if rate != 16000 || channels != 1 || bits != 16 {
		t.Errorf("container = %dHz/%dch/%dbit, want 16000Hz/1ch/16bit", rate, channels, bits)
	}
	if want := 2 * 48000 / 3; n != want {
		t.Errorf("sample count = %d, want %d", n, want)
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	want := int16(math.Round(0.25 * 32767))
	for i, v := range pcm {
		if v != want {
			t.Fatalf("pcm[%d] = %d, want %d (constant tone must survive conversion)", i, v, want)
		}
	}
}

func TestWriteSeekBuffer(t *testing.T) {
	buf := &writeSeekBuffer{}
	if _, err := buf.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := buf.Seek(0, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if _, err := buf.Write([]byte("HELLO")); err != nil {
		t.Fatalf("Write() after seek error = %v", err)
	}
	if got := string(buf.data); got != "HELLO world" {
		t.Errorf("data = %q, want %q", got, "HELLO world")
	}
}
