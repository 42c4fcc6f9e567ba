package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dzaytsev/credkeeper/internal/logging"
	"github.com/dzaytsev/credkeeper/internal/server"
	"github.com/dzaytsev/credkeeper/internal/server/config"
	"github.com/dzaytsev/credkeeper/internal/supervisor"
)

func main() {

	cfg := config.LoadConfig()

	if supervisor.IsWorker() {
		ctx := context.Background()
		app, err := server.NewApp(ctx, cfg)
		if err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		app.Run(ctx)
		return
	}

	// supervisor process: fan out workers and respawn them until terminated
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor.Run(ctx, logger, cfg.Workers)
}
