package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-gateway/internal/logger"
	"trade-gateway/internal/trace"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initializeSystem(); err != nil {
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	mgr, ok := initializeManager(ctx, cfg)
	if !ok {
		os.Exit(1)
	}
	defer mgr.Terminate()

	subscribeUniverse(ctx, cfg, mgr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	liveness := time.NewTicker(5 * time.Second)
	defer liveness.Stop()

	logger.Info(ctx, "Gateway manager running", "symbols", len(cfg.UniverseStatic))

	for {
		select {
		case <-liveness.C:
			if !mgr.IsAlive() {
				logger.Error(ctx, "Liveness flag is down, shutting down")
				return
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down on signal")
			return
		case <-ctx.Done():
			return
		}
	}
}
