// ABOUTME: Tests for streaming scripts
// ABOUTME: Checks the default cycle and JSON script parsing
package streamer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/virtual-audio-driver/micfeed/internal/waveform"
)

func TestDefaultScript(t *testing.T) {
	s := DefaultScript()
	if err := s.Validate(); err != nil {
		t.Fatalf("default script invalid: %v", err)
	}

	if len(s.Steps) != 10 {
		t.Fatalf("expected 10 steps, got %d", len(s.Steps))
	}
	if s.CyclePause != time.Second {
		t.Errorf("expected 1s cycle pause, got %v", s.CyclePause)
	}

	first := s.Steps[0]
	if first.Request.Kind != waveform.Tone || first.Request.FrequencyHz != 440 || first.Request.Duration != time.Second {
		t.Errorf("unexpected first step %v", first.Request)
	}
	if first.Pause != 100*time.Millisecond {
		t.Errorf("expected 100ms pause, got %v", first.Pause)
	}

	noise := s.Steps[2]
	if noise.Request.Kind != waveform.Noise || noise.Request.Amplitude != 0.1 || noise.Request.Duration != 500*time.Millisecond {
		t.Errorf("unexpected noise step %v", noise.Request)
	}

	for i, freq := range DefaultSweep {
		step := s.Steps[4+i]
		if step.Request.Kind != waveform.SweepStep || step.Request.FrequencyHz != freq {
			t.Errorf("sweep step %d: unexpected %v", i, step.Request)
		}
		if step.Request.Duration != 300*time.Millisecond || step.Pause != 50*time.Millisecond {
			t.Errorf("sweep step %d: unexpected timing %v / %v", i, step.Request.Duration, step.Pause)
		}
	}

	// 1 + 1 + 0.5 + 1 + 6 × 0.3
	if s.AudioDuration() != 5300*time.Millisecond {
		t.Errorf("expected 5.3s of audio per cycle, got %v", s.AudioDuration())
	}
}

func TestWithClip(t *testing.T) {
	base := DefaultScript()
	s := base.WithClip("song.mp3", time.Second)

	if len(s.Steps) != len(base.Steps)+1 {
		t.Fatalf("expected %d steps, got %d", len(base.Steps)+1, len(s.Steps))
	}
	last := s.Steps[len(s.Steps)-1]
	if last.Request.Kind != waveform.Clip || last.Request.Path != "song.mp3" {
		t.Errorf("unexpected clip step %v", last.Request)
	}
	if len(DefaultScript().Steps) != 10 {
		t.Error("WithClip modified the base script")
	}
}

func TestParseScript(t *testing.T) {
	input := `{
		"cycle_pause": "2s",
		"steps": [
			{"kind": "tone", "frequency": 1000, "duration": "250ms", "amplitude": 0.25, "pause": "10ms"},
			{"kind": "silence", "duration": "1s"},
			{"kind": "sweep", "frequencies": [100, 200, 300], "duration": "100ms", "pause": "5ms"},
			{"kind": "clip", "path": "intro.flac"}
		]
	}`

	s, err := ParseScript(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}

	if s.CyclePause != 2*time.Second {
		t.Errorf("expected 2s cycle pause, got %v", s.CyclePause)
	}
	if len(s.Steps) != 6 {
		t.Fatalf("expected 6 steps after sweep expansion, got %d", len(s.Steps))
	}

	tone := s.Steps[0]
	if tone.Request.FrequencyHz != 1000 || tone.Request.Amplitude != 0.25 || tone.Pause != 10*time.Millisecond {
		t.Errorf("unexpected tone step %+v", tone)
	}
	for i, freq := range []float64{100, 200, 300} {
		step := s.Steps[2+i]
		if step.Request.Kind != waveform.SweepStep || step.Request.FrequencyHz != freq || step.Pause != 5*time.Millisecond {
			t.Errorf("sweep step %d: unexpected %+v", i, step)
		}
	}
	if s.Steps[5].Request.Path != "intro.flac" {
		t.Errorf("unexpected clip path %q", s.Steps[5].Request.Path)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `steps: []`},
		{"empty", `{"steps": []}`},
		{"unknown kind", `{"steps": [{"kind": "square", "duration": "1s"}]}`},
		{"bad duration", `{"steps": [{"kind": "silence", "duration": "soon"}]}`},
		{"bad pause", `{"steps": [{"kind": "silence", "pause": "-"}]}`},
		{"negative duration", `{"steps": [{"kind": "silence", "duration": "-1s"}]}`},
		{"duration too long", `{"steps": [{"kind": "tone", "frequency": 440, "duration": "100h"}]}`},
		{"tone without frequency", `{"steps": [{"kind": "tone", "duration": "1s"}]}`},
		{"clip without path", `{"steps": [{"kind": "clip"}]}`},
		{"unknown field", `{"steps": [{"kind": "silence", "volume": 3}]}`},
		{"bad cycle pause", `{"cycle_pause": "x", "steps": [{"kind": "silence"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScript(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	data := `{"steps": [{"kind": "noise", "duration": "100ms", "amplitude": 0.5}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if len(s.Steps) != 1 || s.Steps[0].Request.Kind != waveform.Noise {
		t.Errorf("unexpected script %+v", s)
	}

	if _, err := LoadScript(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
