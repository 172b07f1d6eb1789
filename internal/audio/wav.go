package audio

import (
	"bytes"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TargetSampleRate is the sample rate every backend expects. All capture
// output is resampled to this rate before leaving the audio package.
const TargetSampleRate = 16000

// EncodeWAV renders mono float samples as an in-memory WAV file:
// 1 channel, 16-bit signed little-endian PCM at the given sample rate.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	buf := &writeSeekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)

	ib := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	pcm := EncodePCM16(samples)
	for i := 0; i+2 <= len(pcm); i += 2 {
		ib.Data[i/2] = int(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
	}

	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: close wav encoder: %w", err)
	}
	return buf.data, nil
}

// DecodeWAV extracts the raw 16-bit PCM samples from an in-memory WAV file.
// It is the inverse of EncodeWAV for verifying what a backend will receive.
func DecodeWAV(data []byte) ([]int16, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}
	samples := make([]int16, len(ib.Data))
	for i, v := range ib.Data {
		samples[i] = int16(v)
	}
	return samples, nil
}

// WAVInfo reports the container fields of an in-memory WAV file.
func WAVInfo(data []byte) (sampleRate int, channels int, bitDepth int, samples int, err error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("audio: decode wav: %w", err)
	}
	return int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth), len(ib.Data), nil
}

// writeSeekBuffer is a minimal in-memory io.WriteSeeker. wav.NewEncoder
// seeks back to patch the RIFF header on Close, so bytes.Buffer cannot be
// used directly.
type writeSeekBuffer struct {
	data []byte
	pos  int
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	if grow := b.pos + len(p) - len(b.data); grow > 0 {
		b.data = append(b.data, make([]byte, grow)...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("audio: seek before start")
	}
	b.pos = int(pos)
	return pos, nil
}
