//go:build !unix

package fileio

import "os"

func fsync(f *os.File) error {
	return f.Sync()
}
