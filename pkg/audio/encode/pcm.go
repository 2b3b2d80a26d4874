// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int16 samples to headerless little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	channels int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMEncoder{
		channels: format.Channels,
	}, nil
}

// Encode converts int16 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int16) ([]byte, error) {
	if e.channels > 0 && len(samples)%e.channels != 0 {
		return nil, fmt.Errorf("partial frame: %d samples for %d channels", len(samples), e.channels)
	}
	return AppendPCM16(make([]byte, 0, len(samples)*2), samples), nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

// AppendPCM16 appends samples to dst as little-endian 16-bit PCM
func AppendPCM16(dst []byte, samples []int16) []byte {
	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(sample))
	}
	return dst
}

// EncodeBuffer encodes a buffer with a PCM encoder built from its format
func EncodeBuffer(buf audio.PCMBuffer) ([]byte, error) {
	encoder, err := NewPCM(buf.Format)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.Encode(buf.Samples)
}
