// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PCMBuffer and sample conversion functions
// Package audio provides the PCM types shared by the generator, the pipe
// writer and the monitors.
//
// The pipe carries raw little-endian interleaved signed 16-bit stereo at
// 44100 Hz with no header; DefaultFormat describes it.
//
// Example:
//
//	frames := audio.DefaultFormat.Frames(500 * time.Millisecond) // 22050
//	buf := audio.PCMBuffer{
//	    Samples: make([]int16, frames*audio.DefaultChannels),
//	    Format:  audio.DefaultFormat,
//	}
package audio
