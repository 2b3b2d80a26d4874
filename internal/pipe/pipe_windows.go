//go:build windows

// ABOUTME: Named pipe endpoint for Windows
// ABOUTME: Creates \\.\pipe\VirtualMicInput_N and accepts exactly one driver connection
package pipe

import (
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/Microsoft/go-winio"
)

// Name returns the named pipe path for pin. dir is ignored on Windows.
func Name(pin int, dir string) string {
	return `\\.\pipe\` + BaseName + strconv.Itoa(pin)
}

type namedPipe struct {
	listener net.Listener
	once     sync.Once
}

func listen(name string, opts Options) (endpoint, error) {
	l, err := winio.ListenPipe(name, &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  int32(opts.BufferSize),
		OutputBufferSize: int32(opts.BufferSize),
	})
	if err != nil {
		return nil, err
	}
	return &namedPipe{listener: l}, nil
}

// accept waits for the driver, then stops listening so no second
// instance can connect
func (p *namedPipe) accept() (io.WriteCloser, error) {
	conn, err := p.listener.Accept()
	if err != nil {
		return nil, err
	}
	p.close()
	return conn, nil
}

func (p *namedPipe) close() error {
	var err error
	p.once.Do(func() {
		err = p.listener.Close()
	})
	return err
}
