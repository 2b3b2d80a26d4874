// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format and interleaved 16-bit PCM buffers
package audio

import (
	"math"
	"time"
)

const (
	// Stream format shared with the virtual microphone driver
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	DefaultBitDepth   = 16

	// 16-bit sample range
	MaxInt16 = math.MaxInt16
	MinInt16 = math.MinInt16
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is the format written to the pipe. The consumer knows it out of band.
var DefaultFormat = Format{
	Codec:      "pcm",
	SampleRate: DefaultSampleRate,
	Channels:   DefaultChannels,
	BitDepth:   DefaultBitDepth,
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameBytes returns the size of one interleaved frame
func (f Format) FrameBytes() int {
	return f.Channels * f.BytesPerSample()
}

// Nyquist returns the highest frequency representable without aliasing
func (f Format) Nyquist() float64 {
	return float64(f.SampleRate) / 2
}

// Frames returns floor(SampleRate × d). Negative durations yield 0.
func (f Format) Frames(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	sec, frac := int64(d/time.Second), int64(d%time.Second)
	rate := int64(f.SampleRate)
	return int(sec*rate + frac*rate/int64(time.Second))
}

// FramesDuration returns the playback time of n frames
func (f Format) FramesDuration(n int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.SampleRate))
}

// PCMBuffer is interleaved signed 16-bit audio. It is produced once per
// request and handed to the pipe writer without reuse.
type PCMBuffer struct {
	Samples []int16
	Format  Format
}

// Frames returns the number of interleaved frames
func (b PCMBuffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// ByteLen returns the encoded size in bytes
func (b PCMBuffer) ByteLen() int {
	return len(b.Samples) * b.Format.BytesPerSample()
}

// Duration returns the playback time represented by the buffer
func (b PCMBuffer) Duration() time.Duration {
	return b.Format.FramesDuration(b.Frames())
}

// Channel extracts one channel's samples
func (b PCMBuffer) Channel(ch int) []int16 {
	if ch < 0 || ch >= b.Format.Channels {
		return nil
	}
	out := make([]int16, 0, b.Frames())
	for i := ch; i < len(b.Samples); i += b.Format.Channels {
		out = append(out, b.Samples[i])
	}
	return out
}

// ClampInt16 saturates v into the int16 range and truncates toward zero
func ClampInt16(v float64) int16 {
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit left-justified to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}
