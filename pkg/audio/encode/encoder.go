// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for turning PCM buffers into wire bytes
package encode

// Encoder encodes interleaved int16 samples to wire bytes
type Encoder interface {
	// Encode converts PCM samples to encoded audio data
	Encode(samples []int16) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
