// ABOUTME: PCM audio decoder
// ABOUTME: Decodes headerless 16-bit and 24-bit PCM to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Decode converts PCM bytes to int32 samples. Trailing partial samples are dropped.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	width := d.bitDepth / 8
	samples := make([]int32, len(data)/width)

	for i := range samples {
		b := data[i*width:]
		if d.bitDepth == 24 {
			val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if val&0x800000 != 0 {
				val |= ^0xFFFFFF
			}
			samples[i] = val
			continue
		}
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
	}

	return samples, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// DecodeRaw reads a whole headerless PCM stream in the given format
func DecodeRaw(r io.Reader, format audio.Format) (*Clip, error) {
	decoder, err := NewPCM(format)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM: %w", err)
	}

	frameBytes := format.FrameBytes()
	if frameBytes > 0 {
		data = data[:len(data)-len(data)%frameBytes]
	}

	samples, err := decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Clip{Samples: samples, Format: format}, nil
}
