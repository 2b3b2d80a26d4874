// ABOUTME: Single-instance named pipe writer feeding the virtual microphone driver
// ABOUTME: Owns the pipe instance and performs blocking all-or-nothing writes
package pipe

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// BaseName is the name the driver opens, suffixed with the pin number
	BaseName = "VirtualMicInput_"

	// DefaultBufferSize matches a modest audio block
	DefaultBufferSize = 8192
)

var (
	// ErrCreationFailed means the OS refused to create the pipe instance
	ErrCreationFailed = errors.New("pipe creation failed")

	// ErrWriteFailed means the bytes were not delivered; nothing about
	// partial delivery may be assumed
	ErrWriteFailed = errors.New("pipe write failed")

	// ErrClosed is wrapped by ErrWriteFailed when writing after Close
	ErrClosed = errors.New("pipe closed")
)

// endpoint is the platform pipe instance
type endpoint interface {
	// accept blocks until the consumer connects
	accept() (io.WriteCloser, error)
	// close releases the instance
	close() error
}

// Options tune pipe creation
type Options struct {
	BufferSize int
}

// Writer owns one pipe instance. It is created by Open and must only be
// written from one goroutine; Close may be called from any goroutine.
type Writer struct {
	name string
	ep   endpoint

	mu      sync.Mutex
	conn    io.WriteCloser
	closed  bool
	written int64
}

// Open creates the pipe instance with default options
func Open(name string) (*Writer, error) {
	return OpenWith(name, Options{})
}

// OpenWith creates the pipe instance. It does not wait for the consumer.
func OpenWith(name string, opts Options) (*Writer, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	ep, err := listen(name, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreationFailed, name, err)
	}

	return &Writer{name: name, ep: ep}, nil
}

// Name returns the pipe name
func (w *Writer) Name() string {
	return w.name
}

// Connected reports whether the consumer has connected
func (w *Writer) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil && !w.closed
}

// BytesWritten returns the total delivered to the consumer
func (w *Writer) BytesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Write blocks until the consumer has connected and accepted all of p.
// An empty p is a no-op and does not wait for the consumer.
func (w *Writer) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	conn, err := w.connection()
	if err != nil {
		return err
	}

	for off := 0; off < len(p); {
		n, err := conn.Write(p[off:])
		off += n
		if err != nil {
			return fmt.Errorf("%w: %s after %d of %d bytes: %w", ErrWriteFailed, w.name, off, len(p), err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, w.name, io.ErrShortWrite)
		}
	}

	w.mu.Lock()
	w.written += int64(len(p))
	w.mu.Unlock()
	return nil
}

func (w *Writer) connection() (io.WriteCloser, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, w.name, ErrClosed)
	}
	conn := w.conn
	w.mu.Unlock()

	if conn != nil {
		return conn, nil
	}

	conn, err := w.ep.accept()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: waiting for consumer: %w", ErrWriteFailed, w.name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, w.name, ErrClosed)
	}
	w.conn = conn
	return conn, nil
}

// Close releases the connection and the pipe instance. It is safe to call
// more than once and on a nil Writer.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.conn != nil {
		errs = append(errs, w.conn.Close())
		w.conn = nil
	}
	if w.ep != nil {
		errs = append(errs, w.ep.close())
	}
	return errors.Join(errs...)
}
