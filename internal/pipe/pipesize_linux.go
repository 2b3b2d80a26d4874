// ABOUTME: Linux pipe buffer sizing
// ABOUTME: Shrinks the FIFO buffer to the configured block size with F_SETPIPE_SZ
package pipe

import (
	"os"

	"golang.org/x/sys/unix"
)

// setPipeSize bounds kernel buffering; on failure the kernel default stays
func setPipeSize(f *os.File, size int) {
	raw, err := f.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.FcntlInt(fd, unix.F_SETPIPE_SZ, size)
	})
}
