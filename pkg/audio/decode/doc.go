// ABOUTME: Audio decoder package for loading clip files
// ABOUTME: Provides Decoder interface and PCM, FLAC and MP3 implementations
// Package decode loads audio files for clip steps.
//
// Supports: raw PCM (16-bit and 24-bit), FLAC, MP3
//
// Decoded samples are int32 in the 24-bit range; callers convert them to the
// pipe format.
//
// Example:
//
//	clip, err := decode.LoadFile("chime.flac")
package decode
