//go:build unix

package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Shield points os.Stdout at a duplicate of the current stdout descriptor.
// A tool that closes os.Stdout then closes only the duplicate. restore puts
// the original *os.File back and releases the duplicate.
func Shield() (restore func(), err error) {
	saved := os.Stdout
	dup, err := dupFile(saved)
	if err != nil {
		return func() {}, fmt.Errorf("dup stdout: %w", err)
	}
	os.Stdout = dup
	return func() {
		os.Stdout = saved
		releaseDup(dup, saved)
	}, nil
}

func dupFile(f *os.File) (*os.File, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), f.Name()), nil
}
