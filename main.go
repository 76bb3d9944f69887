package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/daskuntal75/CareerCoPilot-sub001/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
