//go:build unix

package aol

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync issues an explicit durability barrier via golang.org/x/sys/unix,
// grounded on the teacher pack's loader_unix.go split (joshuapare-hivekit).
func fsync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
