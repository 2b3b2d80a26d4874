// ABOUTME: Test signal generator
// ABOUTME: Synthesizes tone, silence, noise and sweep buffers as interleaved stereo PCM
package waveform

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/decode"
)

// ToneBuffer generates a sine of freqHz with the given peak in sample units.
// Each mono sample is rounded, clamped and duplicated to both channels.
// Frequencies at or above 22050Hz alias.
func ToneBuffer(freqHz float64, d time.Duration, peak float64) audio.PCMBuffer {
	format := audio.DefaultFormat
	frames := format.Frames(d)
	samples := make([]int16, frames*format.Channels)

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(format.SampleRate)
		v := audio.ClampInt16(math.Round(peak * math.Sin(2*math.Pi*freqHz*t)))
		fill(samples[i*format.Channels:(i+1)*format.Channels], v)
	}

	return audio.PCMBuffer{Samples: samples, Format: format}
}

// SilenceBuffer generates an all-zero buffer, the pipe's idle signal
func SilenceBuffer(d time.Duration) audio.PCMBuffer {
	format := audio.DefaultFormat
	return audio.PCMBuffer{
		Samples: make([]int16, format.Frames(d)*format.Channels),
		Format:  format,
	}
}

// NoiseBuffer draws one normal sample per frame with standard deviation
// amplitude, scales it by NoiseScale and clamps to ±32767. Both channels
// carry the same value. A nil rng uses the global source.
func NoiseBuffer(d time.Duration, amplitude float64, rng *rand.Rand) audio.PCMBuffer {
	format := audio.DefaultFormat
	frames := format.Frames(d)
	samples := make([]int16, frames*format.Channels)

	norm := rand.NormFloat64
	if rng != nil {
		norm = rng.NormFloat64
	}

	for i := 0; i < frames; i++ {
		v := norm() * amplitude * NoiseScale
		v = math.Max(-audio.MaxInt16, math.Min(audio.MaxInt16, v))
		fill(samples[i*format.Channels:(i+1)*format.Channels], int16(v))
	}

	return audio.PCMBuffer{Samples: samples, Format: format}
}

// Sweep returns one SweepStep request per frequency, in order
func Sweep(freqs []float64, step time.Duration, amplitude float64) []Request {
	reqs := make([]Request, 0, len(freqs))
	for _, f := range freqs {
		reqs = append(reqs, Request{
			Kind:        SweepStep,
			FrequencyHz: f,
			Duration:    step,
			Amplitude:   amplitude,
		})
	}
	return reqs
}

func fill(frame []int16, v int16) {
	for ch := range frame {
		frame[ch] = v
	}
}

// Generator turns requests into buffers. It owns the noise source and a
// cache of decoded clips; it is not safe for concurrent use.
type Generator struct {
	rng   *rand.Rand
	clips map[string]audio.PCMBuffer
	load  func(path string) (*decode.Clip, error)
}

// NewGenerator creates a generator. A nil rng uses the global source.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{
		rng:   rng,
		clips: make(map[string]audio.PCMBuffer),
		load:  decode.LoadFile,
	}
}

// Generate synthesizes the buffer for req
func (g *Generator) Generate(req Request) (audio.PCMBuffer, error) {
	if err := req.Validate(); err != nil {
		return audio.PCMBuffer{}, err
	}

	switch req.Kind {
	case Tone, SweepStep:
		return ToneBuffer(req.FrequencyHz, req.Duration, req.TonePeak()), nil
	case Silence:
		return SilenceBuffer(req.Duration), nil
	case Noise:
		return NoiseBuffer(req.Duration, req.NoiseAmplitude(), g.rng), nil
	case Clip:
		return g.clip(req)
	}
	return audio.PCMBuffer{}, fmt.Errorf("%w: unknown kind %s", ErrInvalidRequest, req.Kind)
}

func (g *Generator) clip(req Request) (audio.PCMBuffer, error) {
	buf, ok := g.clips[req.Path]
	if !ok {
		c, err := g.load(req.Path)
		if err != nil {
			return audio.PCMBuffer{}, fmt.Errorf("failed to load clip %s: %w", req.Path, err)
		}
		buf = FromClip(c)
		g.clips[req.Path] = buf
	}

	if req.Duration > 0 {
		limit := buf.Format.Frames(req.Duration) * buf.Format.Channels
		if limit < len(buf.Samples) {
			buf.Samples = buf.Samples[:limit]
		}
	}
	if req.Amplitude > 0 {
		scaled := make([]int16, len(buf.Samples))
		for i, s := range buf.Samples {
			scaled[i] = audio.ClampInt16(float64(s) * req.Amplitude)
		}
		buf.Samples = scaled
	}
	return buf, nil
}
