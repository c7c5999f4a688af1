//go:build !unix

package aol

import "os"

// fsync falls back to the portable (*os.File).Sync on non-unix platforms.
func fsync(f *os.File) error {
	return f.Sync()
}
