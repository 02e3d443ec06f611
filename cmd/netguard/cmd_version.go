// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"

	"github.com/google/subcommands"

	"github.com/ManuGH/netguard/internal/version"
)

type versionCmd struct {
	streams
	verbose bool
}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "print version information" }
func (*versionCmd) Usage() string {
	return `version [--verbose]:
  Report the build version and exit.
`
}

func (c *versionCmd) SetFlags(f *flag.FlagSet) {
	f.SetOutput(c.stderr)
	f.BoolVar(&c.verbose, "verbose", false, "also print the Go version the binary was built with")
}

func (c *versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, _ = fmt.Fprintln(c.stdout, version.String())
	if c.verbose {
		_, _ = fmt.Fprintf(c.stdout, "built with %s\n", runtime.Version())
	}
	return subcommands.ExitSuccess
}
