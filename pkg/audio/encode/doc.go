// ABOUTME: Audio encoder package for producing pipe wire bytes
// ABOUTME: Provides Encoder interface and the little-endian PCM implementation
// Package encode turns PCM buffers into the bytes written to the pipe.
//
// Supports: PCM 16-bit little-endian, no header or framing.
//
// Example:
//
//	encoder, err := encode.NewPCM(audio.DefaultFormat)
//	data, err := encoder.Encode(buf.Samples)
package encode
