package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/app"
	"github.com/lueurxax/signal-digest/internal/platform/config"
)

func main() {
	mode := flag.String("mode", "run", "Mode (run, train, record, schedule)")
	url := flag.String("url", "", "Item URL (record mode)")
	event := flag.String("event", "", "Interaction kind: click, open, view (record mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := runMode(ctx, application, *mode, *url, *event); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Error().Err(err).Str("mode", *mode).Msg("application error")
		stop()
		os.Exit(1)
	}
}

func newLogger(appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode, url, event string) error {
	switch mode {
	case "run":
		return application.RunDigest(ctx)
	case "train":
		return application.RunTrain()
	case "record":
		return application.RunRecord(url, event)
	case "schedule":
		return application.RunSchedule(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[run|train|record|schedule] [--url=URL --event=click]", os.Args[0])

		return nil
	}
}
