//go:build !unix

package stdio

import "os"

// Shield only remembers os.Stdout on platforms without dup(2). The
// Unclosable wrapper handed to the tool is the only protection there.
func Shield() (restore func(), err error) {
	saved := os.Stdout
	return func() { os.Stdout = saved }, nil
}

// dupFile hands back f itself; there is nothing to duplicate with.
func dupFile(f *os.File) (*os.File, error) {
	return f, nil
}
