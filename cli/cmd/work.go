// Package cmd implements the strelka-backend CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/dispatch"
	"github.com/strelka-go/backend/iox"
	"github.com/strelka-go/backend/log"
	"github.com/strelka-go/backend/metrics"
	"github.com/strelka-go/backend/tasting"
)

// DefaultConfigPath is consulted when --worker-config is not given.
const DefaultConfigPath = "/etc/strelka/backend.yaml"

// startupPingTimeout bounds the coordinator reachability check at boot.
const startupPingTimeout = 10 * time.Second

// WorkCommand returns the work command: run one worker to retirement.
func WorkCommand() *cli.Command {
	return &cli.Command{
		Name:  "work",
		Usage: "Lease and scan requests until a worker budget is exhausted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "worker-config",
				Usage: "Path to the worker config file",
			},
		},
		Action: workAction,
	}
}

func workAction(c *cli.Context) error {
	path := c.String("worker-config")
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		return cli.Exit(fmt.Sprintf("worker config not found: %s", path), 1)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), 1)
	}

	logCfg, err := log.LoadConfig(cfg.LoggingCfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load logging config: %v", err), 1)
	}

	workerID := uuid.New().String()
	logger := log.NewLogger(logCfg, workerID)

	taster, err := tasting.New(cfg.Tasting)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load classifiers: %v", err), 1)
	}

	coord := coordinator.New(cfg.Coordinator.Addr, cfg.Coordinator.DB)
	defer iox.DiscardClose(coord)

	pingCtx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	err = coord.Ping(pingCtx)
	cancel()
	if err != nil {
		// Unreachable coordinator at startup is fatal; at runtime it is not.
		return cli.Exit(fmt.Sprintf("coordinator unreachable at %s: %v", cfg.Coordinator.Addr, err), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	registry := dispatch.NewRegistry(cfg, coord)
	dist := dispatch.NewDistributor(cfg, coord, taster, registry, logger, collector)
	worker := dispatch.NewWorker(cfg, coord, dist, logger, collector)

	if err := worker.Work(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("worker failed: %v", err), 1)
	}
	return nil
}
