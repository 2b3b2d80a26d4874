// ABOUTME: Clip conversion to the pipe format
// ABOUTME: Maps channels, resamples and narrows decoded clips to 16-bit stereo
package waveform

import (
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/decode"
	"github.com/virtual-audio-driver/micfeed/pkg/audio/resample"
)

// FromClip converts a decoded clip to 44.1kHz interleaved stereo int16.
// Mono clips are duplicated; extra channels beyond the first two are dropped.
func FromClip(c *decode.Clip) audio.PCMBuffer {
	format := audio.DefaultFormat
	frames := c.Frames()

	stereo := make([]int32, frames*format.Channels)
	for i := 0; i < frames; i++ {
		base := i * c.Format.Channels
		left := c.Samples[base]
		right := left
		if c.Format.Channels > 1 {
			right = c.Samples[base+1]
		}
		stereo[i*2] = left
		stereo[i*2+1] = right
	}

	if c.Format.SampleRate != format.SampleRate && c.Format.SampleRate > 0 {
		stereo = resample.New(c.Format.SampleRate, format.SampleRate, format.Channels).Resample(stereo)
	}

	samples := make([]int16, len(stereo))
	for i, s := range stereo {
		samples[i] = audio.SampleToInt16(s)
	}

	return audio.PCMBuffer{Samples: samples, Format: format}
}
