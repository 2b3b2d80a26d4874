// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a complete MP3 stream to int32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

// DecodeMP3 reads an MP3 stream to the end.
// go-mp3 always produces 16-bit little-endian stereo.
func DecodeMP3(r io.Reader) (*Clip, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	format := audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}

	pcm := &PCMDecoder{bitDepth: 16}
	samples, err := pcm.Decode(raw)
	if err != nil {
		return nil, err
	}

	return &Clip{Samples: samples, Format: format}, nil
}
