//go:build !unix

package bundle

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
