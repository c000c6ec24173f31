package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stevemurr/ingrain/cmd/ingrain/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := cmd.NewRootCmd()
	if err := command.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
