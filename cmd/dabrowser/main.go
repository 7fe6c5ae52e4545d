// Package main is the entry point for the DaBrowser CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xabinapal/dabrowser/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Cancelling the context closes every running browser session.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.New().Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
