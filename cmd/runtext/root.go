// cmd/runtext/root.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/daemon"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	settings   string
	pidPath    string
	noDaemon   bool
}

// contextsPath prefers a positional argument over the --config flag.
func (o *rootOptions) contextsPath(args []string) string {
	if len(args) > 0 {
		return config.ExpandHome(args[0])
	}
	return config.ExpandHome(o.configPath)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "runtext [config]",
		Short: "Run actions while the machine is in a context",
		Long: `runtext watches triggers such as the associated Wi-Fi network and
runs actions while the configured contexts are entered.

Without --no-daemon the process detaches from the terminal and keeps
running in the background.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.contextsPath(args)
			if !opts.noDaemon {
				return daemonize(cmd, path)
			}
			return runForeground(cmd.Context(), opts, path)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultContextsPath(), "contexts file (YAML, JSON or JSONC)")
	cmd.PersistentFlags().StringVar(&opts.settings, "settings", "", "daemon settings file")
	cmd.Flags().StringVarP(&opts.pidPath, "pid", "p", filepath.Join(os.TempDir(), "runtext.pid"), "pid file")
	cmd.Flags().BoolVar(&opts.noDaemon, "no-daemon", false, "run in the foreground")

	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newMCPServerCommand(opts))

	return cmd
}

// runForeground holds the pid lock and runs the daemon until SIGINT or
// SIGTERM.
func runForeground(ctx context.Context, opts *rootOptions, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	release, err := acquirePIDFile(opts.pidPath)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.New(path, opts.settings).Run(ctx)
}

var errAlreadyRunning = errors.New("runtext is already running")

// acquirePIDFile takes an exclusive lock on <pidPath>.lock and writes the
// current pid to pidPath. The returned function removes both.
func acquirePIDFile(pidPath string) (func(), error) {
	lock := flock.New(pidPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s is held)", errAlreadyRunning, lock.Path())
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}

	return func() {
		os.Remove(pidPath)
		lock.Unlock()
		os.Remove(lock.Path())
	}, nil
}
