// ABOUTME: Decoder interface and decoded clip type
// ABOUTME: Common interface for decoders plus the file loader used by clip steps
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

// Decoder decodes audio in various formats to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// Clip is a fully decoded file in its native format.
// Samples are interleaved and left-justified in the 24-bit range.
type Clip struct {
	Title   string
	Samples []int32
	Format  audio.Format
}

// Frames returns the number of interleaved frames
func (c *Clip) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// LoadFile decodes a whole MP3, FLAC or raw PCM file into memory.
// Raw files (.pcm, .raw) are assumed to already be in the pipe format.
func LoadFile(path string) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3", ".flac", ".pcm", ".raw":
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .pcm, .raw)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var clip *Clip
	switch ext {
	case ".mp3":
		clip, err = DecodeMP3(f)
	case ".flac":
		clip, err = DecodeFLAC(f)
	default:
		clip, err = DecodeRaw(f, audio.DefaultFormat)
	}
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	clip.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	return clip, nil
}
