package executor

import (
	"context"
	"net"
	"strconv"

	"github.com/cuemby/clusteragent/pkg/health"
	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/types"
)

// Directory waits for a restarted directory node to accept connections
// before dependent roles are recovered. With directory.port set to zero it
// sleeps directory.settle_delay instead.
type Directory struct {
	deps Deps
}

func (d *Directory) RunEntrypoint(ctx context.Context, t Target) {
	logger := log.WithNode(d.deps.Logger, t.Node.ID, string(t.Node.Role))
	cfg := d.deps.Config.Directory

	if cfg.Port == 0 {
		if cfg.SettleDelay <= 0 {
			return
		}
		logger.Info().Dur("delay", cfg.SettleDelay).Msg("Waiting for directory to settle")
		if err := d.deps.Sleep(ctx, cfg.SettleDelay); err != nil {
			logger.Warn().Err(err).Msg("Settle delay interrupted")
		}
		return
	}

	// disabled nodes stay off the overlay, nothing to probe
	if t.Node.State != types.NodeStateSuccess {
		return
	}
	if !t.Node.HasAddress() {
		logger.Warn().Str("weave_ip", t.Node.WeaveIP).Msg("Node has no overlay address, skipping readiness probe")
		return
	}

	address := net.JoinHostPort(t.Node.WeaveIP, strconv.Itoa(cfg.Port))
	timer := metrics.NewTimer()
	result, err := health.WaitReady(ctx, d.deps.NewProbe(address), cfg.ProbeInterval, cfg.ReadyTimeout)
	timer.ObserveDurationVec(metrics.ReadinessWait, string(t.Node.Role))

	if err != nil {
		metrics.RecordStepError("readiness")
		logger.Error().Err(err).Str("address", address).Msg("Directory did not become ready")
		return
	}

	logger.Info().
		Str("address", address).
		Dur("waited", timer.Duration()).
		Str("result", result.Message).
		Msg("Directory is ready")
}
