// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command netguard relays flexible-replication traffic through a pair of
// guard directories.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/ManuGH/netguard/internal/config"
	"github.com/ManuGH/netguard/internal/daemon"
	"github.com/ManuGH/netguard/internal/version"
)

// streams are the process streams handed to every subcommand.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	s := streams{stdin: stdin, stdout: stdout, stderr: stderr}

	top := flag.NewFlagSet("netguard", flag.ContinueOnError)
	top.SetOutput(stderr)
	cdr := subcommands.NewCommander(top, "netguard")
	cdr.Output = stdout
	cdr.Error = stderr

	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	cdr.Register(&daemonCmd{streams: s, mode: daemon.ModeMaster}, "relay")
	cdr.Register(&daemonCmd{streams: s, mode: daemon.ModeReplica}, "relay")
	cdr.Register(&daemonCmd{streams: s, mode: daemon.ModeAll}, "relay")
	cdr.Register(&sweepCmd{streams: s}, "maintenance")
	cdr.Register(&sendCmd{streams: s}, "maintenance")
	cdr.Register(&versionCmd{streams: s}, "")

	if err := top.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	return int(cdr.Execute(ctx))
}

// loadConfig resolves configuration with precedence ENV > file > defaults.
func loadConfig(path string) (*config.Loader, config.AppConfig, error) {
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.AppConfig{}, err
	}
	return loader, cfg, nil
}
