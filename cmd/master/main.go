// Command master runs the Master Dispatcher: it creates the shared regions,
// spawns the configured Player (and optional View) executables, arbitrates
// the game, and exits once it terminates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dungeongate/chompchamps/internal/master"
	"github.com/dungeongate/chompchamps/pkg/logging"
	"github.com/dungeongate/chompchamps/pkg/metrics"
)

func main() {
	cfg, err := master.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "master: %v\n", err)
		os.Exit(2)
	}

	logCfg := logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput}
	if cfg.LogOutput == "file" {
		logCfg.File = &logging.LogFile{Directory: cfg.LogDir, Filename: "master.log", MaxSizeMB: 50, MaxFiles: 5, MaxAgeDay: 7, Compress: true}
	}
	logger := logging.NewLogger("master", logCfg, "seed", cfg.Seed)

	var mx *metrics.GameMetrics
	if cfg.MetricsAddr != "" {
		mx = metrics.NewGameMetrics()
		srv := metrics.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("starting game", "width", cfg.Width, "height", cfg.Height, "players", len(cfg.PlayerPaths))

	d := master.New(cfg, logger, mx)
	result, err := d.Start(ctx)
	if err != nil {
		logger.Error("master failed", "error", err)
		os.Exit(1)
	}

	logger.Info("game finished", "reason", result.Reason.String(), "tie", result.Ranking.Tie)
}
