//go:build unix

package fileio

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync flushes f through its raw descriptor without switching the file to
// blocking mode the way (*os.File).Fd does.
func fsync(f *os.File) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var syncErr error
	if err := rc.Control(func(fd uintptr) {
		syncErr = unix.Fsync(int(fd))
	}); err != nil {
		return err
	}
	return syncErr
}
