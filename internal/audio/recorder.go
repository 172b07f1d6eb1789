package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// stopGrace is how long Stop waits after tearing the device down for
// in-flight callback writes to land in the buffer.
const stopGrace = 100 * time.Millisecond

// DeviceError reports a missing or incompatible capture device. It is fatal
// to the capture attempt and never retried.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio: %s", e.Op)
	}
	return fmt.Sprintf("audio: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureConfig describes the live device stream for one recording. It is
// populated at Start from whatever the default device actually delivers and
// stays fixed until the next Start.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	Format     malgo.FormatType
}

// Recorder captures audio from the default microphone into a float32 buffer
// at the device's native rate and channel count. StopToMemory converts the
// take to the canonical 16 kHz mono WAV handed to the backends.
type Recorder struct {
	ctx *malgo.AllocatedContext

	mu        sync.Mutex
	buf       []float32
	recording bool
	device    *malgo.Device
	cfg       CaptureConfig
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder() (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "initializing audio context", Err: err}
	}
	return &Recorder{ctx: ctx}, nil
}

// Start resolves the default input device, clears the buffer and begins
// appending captured samples. Samples arriving as 16-bit signed or 8-bit
// unsigned integers are normalized to float32 in [-1, 1] inline.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("audio: already recording")
	}
	r.buf = r.buf[:0] // reset buffer but keep capacity
	r.recording = true
	r.mu.Unlock()

	// Zero format/channels/rate asks miniaudio for the device's native
	// configuration instead of forcing a conversion inside the callback.
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatUnknown
	deviceCfg.Capture.Channels = 0
	deviceCfg.SampleRate = 0

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.abortStart()
		return &DeviceError{Op: "initializing capture device", Err: err}
	}

	cfg := CaptureConfig{
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.CaptureChannels()),
		Format:     device.CaptureFormat(),
	}
	switch cfg.Format {
	case malgo.FormatF32, malgo.FormatS16, malgo.FormatU8:
	default:
		device.Uninit()
		r.abortStart()
		return &DeviceError{Op: fmt.Sprintf("unsupported capture format %v", cfg.Format)}
	}

	// Publish the config before the first callback can fire.
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()

	if err := device.Start(); err != nil {
		device.Uninit()
		r.abortStart()
		return &DeviceError{Op: "starting capture device", Err: err}
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	slog.Info("recording started",
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels, "format", cfg.Format)
	return nil
}

func (r *Recorder) abortStart() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

// StopToMemory ends the capture, converts the take to 16 kHz mono and
// returns it as an in-memory WAV file. Calling it on a stopped recorder is
// not an error; it returns the encoding of an empty buffer.
func (r *Recorder) StopToMemory() ([]byte, error) {
	r.mu.Lock()
	r.recording = false
	device := r.device
	r.device = nil
	r.mu.Unlock()

	if device != nil {
		device.Uninit()
		// Let any callback that raced the flag finish its append.
		time.Sleep(stopGrace)
	}

	r.mu.Lock()
	raw := make([]float32, len(r.buf))
	copy(raw, r.buf)
	cfg := r.cfg
	r.mu.Unlock()

	if cfg.Channels == 0 {
		// Never started; encode silence so the caller path stays uniform.
		return EncodeWAV(nil, TargetSampleRate)
	}

	mono := Downmix(raw, cfg.Channels)
	resampled := Resample(mono, cfg.SampleRate, TargetSampleRate)
	slog.Info("recording stopped",
		"raw_samples", len(raw), "mono_samples", len(mono), "resampled_samples", len(resampled))

	return EncodeWAV(resampled, TargetSampleRate)
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}

// onData is the malgo callback invoked on the device's real-time thread.
// The mutex is held only for the append so the callback never waits on
// conversion work.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	cfg := r.cfg
	r.mu.Unlock()

	samples := normalizeSamples(pSample, frameCount*uint32(cfg.Channels), cfg.Format)

	r.mu.Lock()
	if r.recording {
		r.buf = append(r.buf, samples...)
	}
	r.mu.Unlock()
}

// normalizeSamples converts raw device bytes to float32 in [-1, 1].
func normalizeSamples(data []byte, sampleCount uint32, format malgo.FormatType) []float32 {
	samples := make([]float32, 0, sampleCount)
	switch format {
	case malgo.FormatS16:
		for i := uint32(0); i < sampleCount; i++ {
			offset := i * 2
			if offset+2 > uint32(len(data)) {
				break
			}
			v := int16(binary.LittleEndian.Uint16(data[offset : offset+2]))
			samples = append(samples, float32(v)/32767)
		}
	case malgo.FormatU8:
		for i := uint32(0); i < sampleCount && i < uint32(len(data)); i++ {
			samples = append(samples, (float32(data[i])-128)/128)
		}
	default: // FormatF32
		for i := uint32(0); i < sampleCount; i++ {
			offset := i * 4
			if offset+4 > uint32(len(data)) {
				break
			}
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			samples = append(samples, math.Float32frombits(bits))
		}
	}
	return samples
}
