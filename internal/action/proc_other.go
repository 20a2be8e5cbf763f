//go:build !unix

package action

import (
	"errors"
	"os"
	"os/exec"
)

func detach(cmd *exec.Cmd) {}

func kill(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
