// ABOUTME: Streaming scripts: the ordered waveform steps repeated every cycle
// ABOUTME: Provides the default test cycle and JSON script loading
package streamer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/virtual-audio-driver/micfeed/internal/waveform"
)

// Step is one request followed by a pause. The pause is in addition to the
// audio duration of the request.
type Step struct {
	Request waveform.Request
	Pause   time.Duration
}

// Script is the ordered list of steps streamed each cycle
type Script struct {
	Steps      []Step
	CyclePause time.Duration
}

// DefaultSweep is the frequency ladder of the default cycle
var DefaultSweep = []float64{200, 400, 800, 1200, 1600, 2000}

// DefaultScript is the standard test cycle: A4, A5, a noise burst, a
// silence gap and a short stepped sweep.
func DefaultScript() Script {
	s := Script{
		Steps: []Step{
			{Request: waveform.Request{Kind: waveform.Tone, FrequencyHz: 440, Duration: time.Second}, Pause: 100 * time.Millisecond},
			{Request: waveform.Request{Kind: waveform.Tone, FrequencyHz: 880, Duration: time.Second}, Pause: 100 * time.Millisecond},
			{Request: waveform.Request{Kind: waveform.Noise, Duration: 500 * time.Millisecond, Amplitude: 0.1}, Pause: 100 * time.Millisecond},
			{Request: waveform.Request{Kind: waveform.Silence, Duration: time.Second}, Pause: 100 * time.Millisecond},
		},
		CyclePause: time.Second,
	}
	for _, req := range waveform.Sweep(DefaultSweep, 300*time.Millisecond, 0) {
		s.Steps = append(s.Steps, Step{Request: req, Pause: 50 * time.Millisecond})
	}
	return s
}

// WithClip returns a copy of s with a clip step appended
func (s Script) WithClip(path string, pause time.Duration) Script {
	steps := make([]Step, len(s.Steps), len(s.Steps)+1)
	copy(steps, s.Steps)
	s.Steps = append(steps, Step{
		Request: waveform.Request{Kind: waveform.Clip, Path: path},
		Pause:   pause,
	})
	return s
}

// AudioDuration is the audio time of one cycle, excluding pauses
func (s Script) AudioDuration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.Request.Duration
	}
	return total
}

// Validate checks every step
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	if s.CyclePause < 0 {
		return fmt.Errorf("negative cycle pause %v", s.CyclePause)
	}
	for i, step := range s.Steps {
		if err := step.Request.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Pause < 0 {
			return fmt.Errorf("step %d: negative pause %v", i+1, step.Pause)
		}
	}
	return nil
}

// scriptFile is the JSON form of a script
type scriptFile struct {
	CyclePause string     `json:"cycle_pause"`
	Steps      []stepFile `json:"steps"`
}

type stepFile struct {
	Kind        string    `json:"kind"`
	Frequency   float64   `json:"frequency,omitempty"`
	Frequencies []float64 `json:"frequencies,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Amplitude   float64   `json:"amplitude,omitempty"`
	Path        string    `json:"path,omitempty"`
	Pause       string    `json:"pause,omitempty"`
}

// LoadScript reads a JSON script file
func LoadScript(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	s, err := ParseScript(f)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes a JSON script. A sweep step with "frequencies"
// expands to one step per frequency, each followed by the step's pause.
func ParseScript(r io.Reader) (Script, error) {
	var file scriptFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return Script{}, fmt.Errorf("invalid script: %w", err)
	}

	var s Script
	var err error
	if s.CyclePause, err = parseDuration(file.CyclePause); err != nil {
		return Script{}, fmt.Errorf("cycle_pause: %w", err)
	}

	for i, sf := range file.Steps {
		kind, err := waveform.ParseKind(sf.Kind)
		if err != nil {
			return Script{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		duration, err := parseDuration(sf.Duration)
		if err != nil {
			return Script{}, fmt.Errorf("step %d duration: %w", i+1, err)
		}
		pause, err := parseDuration(sf.Pause)
		if err != nil {
			return Script{}, fmt.Errorf("step %d pause: %w", i+1, err)
		}

		if kind == waveform.SweepStep && len(sf.Frequencies) > 0 {
			for _, req := range waveform.Sweep(sf.Frequencies, duration, sf.Amplitude) {
				s.Steps = append(s.Steps, Step{Request: req, Pause: pause})
			}
			continue
		}

		s.Steps = append(s.Steps, Step{
			Request: waveform.Request{
				Kind:        kind,
				FrequencyHz: sf.Frequency,
				Duration:    duration,
				Amplitude:   sf.Amplitude,
				Path:        sf.Path,
			},
			Pause: pause,
		})
	}

	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
