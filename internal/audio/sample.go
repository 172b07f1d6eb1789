package audio

import "math"

// Downmix converts interleaved multi-channel samples to mono by averaging
// each frame. For channels == 1 the input is returned as a copy. Trailing
// samples that do not form a complete frame are dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	frames := len(samples) / channels
	out := make([]float32, 0, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		out = append(out, sum/float32(channels))
	}
	return out
}

// Resample converts samples from one sample rate to another using linear
// interpolation. No anti-aliasing filter is applied before downsampling;
// this trades fidelity for latency and zero allocations beyond the output.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	if len(samples) == 0 {
		return nil
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, 0, outLen)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(math.Floor(srcPos))
		next := idx + 1
		if next > len(samples)-1 {
			next = len(samples) - 1
		}
		frac := srcPos - float64(idx)

		sample := float64(samples[idx])*(1.0-frac) + float64(samples[next])*frac
		out = append(out, float32(sample))
	}
	return out
}

// EncodePCM16 converts float samples in [-1, 1] to 16-bit signed
// little-endian PCM bytes. Out-of-range samples are clamped, not wrapped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		v := int16(math.Round(float64(clamp(s)) * 32767))
		out = append(out, byte(v), byte(v>>8))
	}
	return out
}

// DecodePCM16 converts 16-bit signed little-endian PCM bytes back to float
// samples, the exact inverse of EncodePCM16. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, 0, len(data)/2)
	for i := 0; i+2 <= len(data); i += 2 {
		v := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		out = append(out, float32(v)/32767)
	}
	return out
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
