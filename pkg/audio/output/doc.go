// ABOUTME: Audio output package for monitoring the stream locally
// ABOUTME: Provides Output interface and an oto implementation
// Package output plays the generated stream on the local sound card so an
// operator can hear what is being written to the pipe.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(44100, 2)
//	err = out.Write(buf.Samples)
package output
