//go:build !unix

package audio

import "os/exec"

// Without process groups the default cancellation kills the direct child.
func setProcessGroup(cmd *exec.Cmd) {}
