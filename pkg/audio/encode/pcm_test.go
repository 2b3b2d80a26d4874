// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests little-endian 16-bit encoding and format validation
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{
			name:    "pipe format",
			format:  audio.DefaultFormat,
			wantErr: false,
		},
		{
			name: "invalid codec",
			format: audio.Format{
				Codec:      "opus",
				SampleRate: 44100,
				Channels:   2,
				BitDepth:   16,
			},
			wantErr:     true,
			errContains: "invalid codec",
		},
		{
			name: "unsupported bit depth",
			format: audio.Format{
				Codec:      "pcm",
				SampleRate: 44100,
				Channels:   2,
				BitDepth:   24,
			},
			wantErr:     true,
			errContains: "unsupported bit depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewPCM() expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewPCM() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("NewPCM() unexpected error = %v", err)
			}
			if encoder == nil {
				t.Errorf("NewPCM() returned nil encoder")
			}
		})
	}
}

func TestPCMEncoder_Encode(t *testing.T) {
	encoder, err := NewPCM(audio.DefaultFormat)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}
	defer encoder.Close()

	samples := []int16{0, 0, 32767, 32767, -32768, -32768, 0x1234, -0x1234}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if len(output) != len(samples)*2 {
		t.Errorf("Encode() output size = %d, want %d", len(output), len(samples)*2)
	}

	for i, expected := range samples {
		actual := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if actual != expected {
			t.Errorf("Sample %d: got %d, want %d", i, actual, expected)
		}
	}

	// 0x1234 little-endian
	if output[12] != 0x34 || output[13] != 0x12 {
		t.Errorf("expected little-endian bytes 34 12, got %02x %02x", output[12], output[13])
	}
}

func TestPCMEncoder_PartialFrame(t *testing.T) {
	encoder, err := NewPCM(audio.DefaultFormat)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	if _, err := encoder.Encode([]int16{1, 2, 3}); err == nil {
		t.Error("expected error for partial stereo frame")
	}
}

func TestPCMEncoder_Empty(t *testing.T) {
	encoder, err := NewPCM(audio.DefaultFormat)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode(nil)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(output))
	}
}

func TestEncodeBuffer(t *testing.T) {
	// 0.5s of silence is 44100 samples, 88200 bytes
	buf := audio.PCMBuffer{
		Samples: make([]int16, 44100),
		Format:  audio.DefaultFormat,
	}

	data, err := EncodeBuffer(buf)
	if err != nil {
		t.Fatalf("EncodeBuffer() failed: %v", err)
	}
	if len(data) != 88200 {
		t.Errorf("expected 88200 bytes, got %d", len(data))
	}
	if len(data)%audio.DefaultFormat.FrameBytes() != 0 {
		t.Errorf("byte length %d is not frame aligned", len(data))
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestEncodeBufferRejectsFormat(t *testing.T) {
	tests := []struct {
		name        string
		buf         audio.PCMBuffer
		errContains string
	}{
		{
			name:        "decoded codec",
			buf:         audio.PCMBuffer{Samples: make([]int16, 4), Format: audio.Format{Codec: "mp3", SampleRate: 44100, Channels: 2, BitDepth: 16}},
			errContains: "invalid codec",
		},
		{
			name:        "partial frame",
			buf:         audio.PCMBuffer{Samples: make([]int16, 3), Format: audio.DefaultFormat},
			errContains: "partial frame",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeBuffer(tt.buf)
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("EncodeBuffer() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}
