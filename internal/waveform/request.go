// ABOUTME: Waveform request types
// ABOUTME: Describes what the generator should synthesize and validates it
package waveform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

const (
	// DefaultTonePeak is the tone peak in sample units, about half of full scale
	DefaultTonePeak = 16000

	// DefaultNoiseAmplitude is the standard deviation of noise before scaling
	DefaultNoiseAmplitude = 0.1

	// NoiseScale converts unit noise to sample units
	NoiseScale = 16000

	// MaxDuration bounds a single buffer, about 635MB at the pipe format
	MaxDuration = time.Hour
)

// Kind identifies a waveform
type Kind int

const (
	Tone Kind = iota
	Silence
	Noise
	SweepStep
	Clip
)

var kindNames = map[Kind]string{
	Tone:      "tone",
	Silence:   "silence",
	Noise:     "noise",
	SweepStep: "sweep",
	Clip:      "clip",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a script name back to a Kind
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown waveform kind: %q", s)
}

// ErrInvalidRequest is returned by Validate
var ErrInvalidRequest = errors.New("invalid waveform request")

// Request asks the generator for one buffer.
//
// Amplitude is a 0-1 fraction. For tones it scales full scale (32767) and
// zero selects DefaultTonePeak. For noise it is the standard deviation and
// zero selects DefaultNoiseAmplitude. Clip requests with zero Duration play
// the whole file.
type Request struct {
	Kind        Kind
	FrequencyHz float64
	Duration    time.Duration
	Amplitude   float64
	Path        string
}

// Validate rejects requests the generator cannot satisfy
func (r Request) Validate() error {
	if r.Duration < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrInvalidRequest, r.Duration)
	}
	if r.Duration > MaxDuration {
		return fmt.Errorf("%w: duration %v exceeds %v", ErrInvalidRequest, r.Duration, MaxDuration)
	}
	if r.Amplitude < 0 || r.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude %.3f outside 0-1", ErrInvalidRequest, r.Amplitude)
	}
	switch r.Kind {
	case Tone, SweepStep:
		if r.FrequencyHz <= 0 {
			return fmt.Errorf("%w: %s needs a positive frequency, got %.1f", ErrInvalidRequest, r.Kind, r.FrequencyHz)
		}
	case Clip:
		if r.Path == "" {
			return fmt.Errorf("%w: clip needs a path", ErrInvalidRequest)
		}
	case Silence, Noise:
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// AboveNyquist reports a tone that will alias at the given format.
// It is not rejected; callers warn about it.
func (r Request) AboveNyquist(format audio.Format) bool {
	if r.Kind != Tone && r.Kind != SweepStep {
		return false
	}
	return r.FrequencyHz >= format.Nyquist()
}

// TonePeak returns the tone peak in sample units
func (r Request) TonePeak() float64 {
	if r.Amplitude == 0 {
		return DefaultTonePeak
	}
	return r.Amplitude * audio.MaxInt16
}

// NoiseAmplitude returns the noise standard deviation
func (r Request) NoiseAmplitude() float64 {
	if r.Amplitude == 0 {
		return DefaultNoiseAmplitude
	}
	return r.Amplitude
}

func (r Request) String() string {
	switch r.Kind {
	case Tone, SweepStep:
		return fmt.Sprintf("%s %.0fHz %v", r.Kind, r.FrequencyHz, r.Duration)
	case Noise:
		return fmt.Sprintf("noise %v (amp %.2f)", r.Duration, r.NoiseAmplitude())
	case Clip:
		return fmt.Sprintf("clip %s", r.Path)
	default:
		return fmt.Sprintf("%s %v", r.Kind, r.Duration)
	}
}
