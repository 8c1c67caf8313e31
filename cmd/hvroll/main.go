// Package main is the entry point for the hvroll CLI.
//
// hvroll applies operating system updates to the hypervisor hosts of an
// oVirt / RHV estate one host at a time: each host is moved to maintenance,
// patched over SSH, rebooted if anything was installed, and returned to
// service once the engine sees it again.
//
// Commands: list, rollout, version, completion.
//
// For detailed usage information, run:
//
//	hvroll --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/hvroll/cmd/hvroll/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
