package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/TrackDesk/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stdout))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunTrackWorker(ctx, cfg, defaultWorkerFactories(), workerRunOpts{
		swaggerPath: os.Getenv("swaggerPath"),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("track-worker stopped", "error", err.Error())
		os.Exit(1)
	}
}
