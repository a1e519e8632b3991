package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/meshkit/meshview/internal/cli"
	"github.com/meshkit/meshview/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := cli.NewRunner(config.DefaultConfig(), os.Stdout, os.Stderr)
	os.Exit(r.Run(ctx, os.Args[1:]))
}
