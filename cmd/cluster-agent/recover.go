package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/executor"
	"github.com/cuemby/clusteragent/pkg/facade"
	"github.com/cuemby/clusteragent/pkg/inventory"
	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/network"
	"github.com/cuemby/clusteragent/pkg/recovery"
	"github.com/cuemby/clusteragent/pkg/runtime"
	"github.com/cuemby/clusteragent/pkg/storage"
	"github.com/spf13/cobra"
)

const defaultDatabase = "/var/lib/gluu-cluster/db.json"

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run one recovery pass for this host",
	Long: `Recover the overlay router, every node assigned to this host and,
on the master, the monitoring sidecar.

Exits 0 when the pass completes, even if single nodes failed to recover
(see the log), and 1 when this host's cluster or provider record cannot
be resolved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAgent(cmd, func(ctx context.Context, a *agent) error {
			return a.orchestrator.Execute(ctx)
		})
	},
}

var updateImagesCmd = &cobra.Command{
	Use:   "update-images",
	Short: "Pull fresh node images, stop this host's nodes and recover them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAgent(cmd, func(ctx context.Context, a *agent) error {
			updater := recovery.NewImageUpdater(a.orchestrator, a.runtime, a.cfg.Images)
			return updater.Execute(ctx)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{recoverCmd, updateImagesCmd} {
		cmd.Flags().String("database", defaultDatabase, "Path to the desired-state store (.json or bbolt)")
		cmd.Flags().String("metrics-file", "", "Write pass metrics to this file in Prometheus text format")
	}
}

// agent is the wired recovery stack for one command run
type agent struct {
	cfg          config.Config
	runtime      *runtime.ContainerdRuntime
	orchestrator *recovery.Orchestrator
}

func newAgent(cfg config.Config, store storage.Store) (*agent, error) {
	rt, err := runtime.NewContainerdRuntime(cfg.Runtime.Socket, cfg.Runtime.Namespace, cfg.Runtime.StopTimeout)
	if err != nil {
		return nil, err
	}

	weave := network.NewWeave(cfg.Overlay.Binary, cfg.Overlay.DNSDomain, nil)
	host := facade.NewHost(rt, weave, network.NewNATTable(nil), cfg.Runtime.CallTimeout)
	inv := inventory.New(store, cfg.Overlay.DNSDomain)

	registry := executor.NewRegistry(executor.Deps{
		Facade: host,
		Nodes:  inv,
		Config: cfg,
		Logger: log.WithComponent("executor"),
	})

	return &agent{
		cfg:          cfg,
		runtime:      rt,
		orchestrator: recovery.NewOrchestrator(inv, host, registry, cfg, inventory.LocalHostnames()),
	}, nil
}

func (a *agent) Close() {
	a.runtime.Close()
}

// withAgent wires the stack from flags and config, runs fn until it returns
// or the process is interrupted, then writes metrics if asked to
func withAgent(cmd *cobra.Command, fn func(context.Context, *agent) error) error {
	databasePath, _ := cmd.Flags().GetString("database")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Logger.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	store, err := storage.Open(databasePath)
	if err != nil {
		err = fmt.Errorf("%w: %w", recovery.ErrConfigResolution, err)
		log.Logger.Error().Err(err).Str("database", databasePath).Msg("Failed to open store")
		return err
	}
	defer store.Close()

	if store.Empty() {
		// no runtime connection needed; a host may run before its store exists
		log.Logger.Warn().Str("database", databasePath).Msg("Store holds no desired state, nothing to recover")
		metrics.PassesTotal.WithLabelValues(metrics.PassSkipped).Inc()
		return writeMetrics(metricsFile, nil)
	}

	a, err := newAgent(cfg, store)
	if err != nil {
		log.Logger.Error().Err(err).Msg("Failed to connect to container runtime")
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return writeMetrics(metricsFile, fn(ctx, a))
}

// writeMetrics exports the registry to path, if set, and passes runErr on
func writeMetrics(path string, runErr error) error {
	if path == "" {
		return runErr
	}
	if err := metrics.WriteTextfile(path); err != nil {
		log.Logger.Warn().Err(err).Msg("Failed to write metrics")
	}
	return runErr
}
