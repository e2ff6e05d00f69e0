package install

import (
	"fmt"
	"io"
	"os/exec"
)

// runHook executes a shell command via /bin/sh -c in dir.
// Output is written to log. Returns an error if the command exits non-zero.
var runHook = func(cmd, dir string, log io.Writer) error {
	fmt.Fprintf(log, "[pkgdeploy] Running hook: %s\n", cmd)
	c := exec.Command("/bin/sh", "-c", cmd)
	c.Stdout = log
	c.Stderr = log
	c.Dir = dir
	if err := c.Run(); err != nil {
		return fmt.Errorf("hook %q failed: %w", cmd, err)
	}
	return nil
}
