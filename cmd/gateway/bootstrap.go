package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"trade-gateway/internal/gateway"
	"trade-gateway/internal/logger"
	"trade-gateway/internal/manager"
	"trade-gateway/internal/store"
	"trade-gateway/internal/trace"
	"trade-gateway/internal/types"
)

// initializeSystem loads the environment and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("GATEWAY_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeManager builds the gateway client, logs in, and wires the
// default tick handler.
func initializeManager(ctx context.Context, cfg *store.Config) (*manager.Manager, bool) {
	gw := gateway.NewClient(gateway.Params{
		Mode:    cfg.Mode,
		FeedURL: cfg.Feed.URL,
	})

	if cfg.Mode == "SIM" {
		logger.Warn(ctx, "Running in SIM mode - trade calls are simulated")
	}

	mgr := manager.New(cfg, gw)

	mgr.SetMessageHandler(func(data types.TickData) {
		logger.Info(ctx, "Tick",
			"symbol", data.Symbol,
			"time", data.Time,
			"bid", data.Bid,
			"ask", data.Ask,
		)
	})
	mgr.SetOrderFilledHandler(func(code, message string) {
		logger.Info(ctx, "Order filled", "code", code, "message", message)
	})

	creds := store.CredentialsFromEnv()
	if !mgr.Login(ctx, creds) {
		logger.Error(ctx, "Gateway login failed")
		return nil, false
	}

	if acct, ok := mgr.ActiveAccount(); ok {
		logger.Info(ctx, "Active account selected", "account_no", acct.AccountNo)
	}

	return mgr, true
}

func subscribeUniverse(ctx context.Context, cfg *store.Config, mgr *manager.Manager) {
	for _, symbol := range cfg.UniverseStatic {
		mgr.Subscribe(symbol)
	}
	logger.Info(ctx, "Universe subscribed", "count", len(cfg.UniverseStatic))
}
