package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/movelog/uplink/internal/cli"
	"github.com/movelog/uplink/internal/config"
	"github.com/movelog/uplink/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	command, args := cli.SplitCommand(os.Args[1:])

	err = app.Run(ctx, command, args)
	_ = app.Close()
	if err != nil {
		log.Error(ctx, "command failed", "error", err)
		os.Exit(1)
	}
}
