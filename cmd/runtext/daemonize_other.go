//go:build !unix

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func daemonize(cmd *cobra.Command, path string) error {
	return errors.New("background mode is not supported on this platform, use --no-daemon")
}
