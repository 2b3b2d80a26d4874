//go:build unix && !linux

// ABOUTME: Pipe buffer sizing fallback
// ABOUTME: Platforms without F_SETPIPE_SZ keep the kernel's FIFO buffer
package pipe

import "os"

func setPipeSize(f *os.File, size int) {}
