package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/queuefab/queued-listener/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd.Execute(ctx, os.Args[1:])
	cancel()
}
