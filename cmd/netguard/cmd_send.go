// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/ManuGH/netguard/internal/relay"
)

// sendCmd posts a payload to a master face, wrapped as a
// flexible-replication request, and prints the relayed reply.
type sendCmd struct {
	streams
	url      string
	boundary string
	timeout  time.Duration
	verbose  bool
}

func (*sendCmd) Name() string     { return "send" }
func (*sendCmd) Synopsis() string { return "post a payload to a master face and print the reply" }
func (*sendCmd) Usage() string {
	return `send [--url U] [--boundary ID] [-v] [file|-]:
  Post the payload (stdin by default) as a flexible-replication request.
`
}

func (c *sendCmd) SetFlags(f *flag.FlagSet) {
	f.SetOutput(c.stderr)
	f.StringVar(&c.url, "url", "http://localhost:8080/apply.xqy", "master face URL")
	f.StringVar(&c.boundary, "boundary", "", "correlation ID to use as the multipart boundary (random if empty)")
	f.DurationVar(&c.timeout, "timeout", 5*time.Minute, "overall request timeout")
	f.BoolVar(&c.verbose, "v", false, "print the reply status and headers to stderr")
}

func (c *sendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		_, _ = fmt.Fprintln(c.stderr, "netguard: send takes at most one payload file")
		return subcommands.ExitUsageError
	}

	var payload []byte
	var err error
	if f.NArg() == 0 || f.Arg(0) == "-" {
		payload, err = io.ReadAll(c.stdin)
	} else {
		payload, err = os.ReadFile(f.Arg(0))
	}
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: read payload: %v\n", err)
		return subcommands.ExitFailure
	}

	id := c.boundary
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: %v\n", err)
		return subcommands.ExitUsageError
	}
	req.Header.Set("Content-Type", mime.FormatMediaType(relay.FlexrepMediaType, map[string]string{"boundary": id}))

	client := &http.Client{}
	defer client.CloseIdleConnections()
	resp, err := client.Do(req)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: send: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = resp.Body.Close() }()

	if c.verbose {
		_, _ = fmt.Fprintf(c.stderr, "correlation id: %s\n%s\n", id, resp.Status)
		_ = resp.Header.Write(c.stderr)
	}
	if _, err := io.Copy(c.stdout, resp.Body); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: read reply: %v\n", err)
		return subcommands.ExitFailure
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = fmt.Fprintf(c.stderr, "netguard: master replied %s\n", resp.Status)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
