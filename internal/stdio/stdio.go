package stdio

// The tool writes. The host owns the descriptors.
// Whatever is swapped in MUST be swapped back.

import (
	"fmt"
	"io"
	"os"
)

// Streams are the output destinations handed to an entry point.
type Streams struct {
	Stdout io.WriteCloser
	Stderr io.WriteCloser
}

type flusher interface {
	Flush() error
}

type unclosable struct {
	w io.Writer
}

// Unclosable wraps w so that Close only flushes it. Some tools close their
// output when they finish; the host still needs it for the next call.
func Unclosable(w io.Writer) io.WriteCloser {
	return &unclosable{w: w}
}

func (u *unclosable) Write(p []byte) (int, error) {
	return u.w.Write(p)
}

// Close flushes w if it buffers. It never closes w.
func (u *unclosable) Close() error {
	if f, ok := u.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Redirect points the process's shared os.Stdout and os.Stderr at
// duplicates of the given files. A tool that closes either closes only the
// duplicate; stdout and stderr themselves stay open for the caller. The
// returned func restores the exact originals and releases the duplicates.
func Redirect(stdout, stderr *os.File) (restore func(), err error) {
	outDup, err := dupFile(stdout)
	if err != nil {
		return func() {}, fmt.Errorf("dup stdout: %w", err)
	}
	errDup, err := dupFile(stderr)
	if err != nil {
		releaseDup(outDup, stdout)
		return func() {}, fmt.Errorf("dup stderr: %w", err)
	}

	savedOut, savedErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outDup, errDup
	return func() {
		os.Stdout, os.Stderr = savedOut, savedErr
		releaseDup(outDup, stdout)
		releaseDup(errDup, stderr)
	}, nil
}

// releaseDup closes dup unless it is the original itself.
func releaseDup(dup, orig *os.File) {
	if dup != orig {
		// the tool may have closed it already
		_ = dup.Close()
	}
}
