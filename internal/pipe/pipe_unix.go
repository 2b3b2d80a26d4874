//go:build unix

// ABOUTME: FIFO-backed pipe endpoint for Unix systems
// ABOUTME: Creates the FIFO with mkfifo and opens it for writing when the reader arrives
package pipe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// Name returns the FIFO path for pin inside dir (os.TempDir() when empty)
func Name(pin int, dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, BaseName+strconv.Itoa(pin))
}

type fifo struct {
	path       string
	bufferSize int
	once       sync.Once
}

func listen(name string, opts Options) (endpoint, error) {
	// mkfifo fails with EEXIST on a name collision, including a stale FIFO
	if err := unix.Mkfifo(name, 0o644); err != nil {
		return nil, fmt.Errorf("mkfifo: %w", err)
	}
	return &fifo{path: name, bufferSize: opts.BufferSize}, nil
}

// accept opens the write end; the open blocks until a reader opens the FIFO
func (f *fifo) accept() (io.WriteCloser, error) {
	file, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	setPipeSize(file, f.bufferSize)
	return file, nil
}

// close unlinks the FIFO. A writer still blocked in accept is released by
// briefly opening the read end.
func (f *fifo) close() error {
	var err error
	f.once.Do(func() {
		if fd, openErr := unix.Open(f.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0); openErr == nil {
			unix.Close(fd)
		}
		if rmErr := os.Remove(f.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	})
	return err
}
