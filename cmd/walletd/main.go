package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/wallet-kernel/cmd/flags"
	"github.com/ruteri/wallet-kernel/common"
	"github.com/ruteri/wallet-kernel/config"
	"github.com/ruteri/wallet-kernel/httpserver"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/metrics"
	"github.com/ruteri/wallet-kernel/repository"
	"github.com/ruteri/wallet-kernel/sdk"
	"github.com/ruteri/wallet-kernel/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "walletd",
		Usage: "Serve a local wallet session over HTTP",
		Flags: append([]cli.Flag{
			flags.ConfigFlag,
			flags.ListenAddrFlag,
			flags.LogServiceFlagFn("walletd"),
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := config.Load(cCtx.String(flags.ConfigFlag.Name))
	if err != nil {
		logger.Error("Failed to load config", "err", err)
		return err
	}
	logger.Info("Config loaded", "dataDir", cfg.DataDir, "defaultNetwork", cfg.DefaultNetwork, "networks", len(cfg.Networks))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	users, err := repository.OpenSQLite(ctx, cfg.UserDBPath())
	if err != nil {
		logger.Error("Failed to open user database", "err", err, "path", cfg.UserDBPath())
		return err
	}
	defer users.Close()

	backups, err := openBackups(cfg, logger)
	if err != nil {
		logger.Error("Failed to configure backup storage", "err", err)
		return err
	}

	metricsSrv, err := metrics.New(common.PackageName, cCtx.String(flags.MetricsAddrFlag.Name))
	if err != nil {
		return err
	}

	// Transaction submission and KYC belong to the embedding application;
	// the daemon reports those operations as not configured.
	session, err := sdk.New(sdk.Options{
		Config:  cfg,
		Log:     logger,
		Metrics: metricsSrv.Kernel,
		Users:   users,
		Backups: backups,
	})
	if err != nil {
		logger.Error("Failed to create wallet session", "err", err)
		return err
	}
	defer session.Close()

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), httpserver.NewHandler(session, logger), metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server")
	server.RunInBackground()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

// openBackups builds the backup store from the configured storage URIs, or
// returns nil when none are configured.
func openBackups(cfg *config.Config, logger *slog.Logger) (interfaces.StorageBackend, error) {
	locations, err := cfg.StorageLocations()
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		logger.Warn("No storage backends configured, backups are disabled")
		return nil, nil
	}

	factory := storage.NewStorageBackendFactory(logger)
	if len(locations) == 1 {
		return factory.StorageBackendFor(locations[0])
	}
	return factory.CreateMultiBackend(locations)
}
