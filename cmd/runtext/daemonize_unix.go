//go:build unix

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"
)

// daemonize re-executes the binary with --no-daemon in a new session with
// no standard streams and returns once the child has started.
func daemonize(cmd *cobra.Command, path string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	args := []string{"--no-daemon", "--config", path}
	for _, name := range []string{"pid", "settings"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			args = append(args, "--"+name, f.Value.String())
		}
	}

	child := exec.Command(exe, args...)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting background process: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "runtext started (pid %d)\n", child.Process.Pid)
	return child.Process.Release()
}
