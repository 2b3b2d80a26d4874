// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation resampling between sample rates
package resample

import (
	"testing"
)

func TestNew(t *testing.T) {
	r := New(48000, 44100, 2)

	if r == nil {
		t.Fatal("expected resampler to be created")
	}
	if r.inputRate != 48000 {
		t.Errorf("expected inputRate 48000, got %d", r.inputRate)
	}
	if r.outputRate != 44100 {
		t.Errorf("expected outputRate 44100, got %d", r.outputRate)
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(48000, 44100, 2)

	// one second of stereo ramp
	input := make([]int32, 48000*2)
	for i := range input {
		input[i] = int32(i / 2)
	}

	output := r.Resample(input)
	if len(output) != 44100*2 {
		t.Fatalf("expected %d samples, got %d", 44100*2, len(output))
	}

	// ramp stays monotonic and channels stay equal
	for i := 2; i < len(output); i += 2 {
		if output[i] < output[i-2] {
			t.Fatalf("frame %d: ramp decreased %d -> %d", i/2, output[i-2], output[i])
		}
		if output[i] != output[i+1] {
			t.Fatalf("frame %d: channels differ %d vs %d", i/2, output[i], output[i+1])
		}
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(22050, 44100, 1)

	input := []int32{0, 100, 200, 300}
	output := r.Resample(input)

	if len(output) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(output))
	}

	// every other output sample is an interpolated midpoint
	expected := []int32{0, 50, 100, 150, 200, 250, 300, 300}
	for i := range expected {
		if output[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], output[i])
		}
	}
}

func TestResampleSameRate(t *testing.T) {
	r := New(44100, 44100, 2)

	input := []int32{1, 2, 3, 4}
	output := r.Resample(input)

	if len(output) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(output))
	}
	input[0] = 99
	if output[0] != 1 {
		t.Error("expected output to be a copy of input")
	}
}

func TestResampleEmpty(t *testing.T) {
	r := New(48000, 44100, 2)

	if out := r.Resample(nil); len(out) != 0 {
		t.Errorf("expected no output, got %d samples", len(out))
	}
}
