// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation; quality is adequate for test clips, not for
// mastering.
//
// Example:
//
//	r := resample.New(48000, 44100, 2)
//	out := r.Resample(clip.Samples)
package resample
