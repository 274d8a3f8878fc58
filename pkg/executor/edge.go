package executor

import (
	"context"

	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/network"
)

// Edge forwards the host's inbound web ports to the proxy node. NAT rules do
// not outlive the host's netfilter state, so they are reasserted every time.
type Edge struct {
	deps Deps
}

func (e *Edge) RunEntrypoint(ctx context.Context, t Target) {
	logger := log.WithNode(e.deps.Logger, t.Node.ID, string(t.Node.Role))

	if !t.Node.HasAddress() {
		logger.Warn().Str("weave_ip", t.Node.WeaveIP).Msg("Node has no overlay address, skipping NAT rules")
		return
	}

	cfg := e.deps.Config.Edge
	for _, port := range cfg.Ports {
		rule := network.NATRule{
			Interface:   cfg.Interface,
			Protocol:    "tcp",
			Port:        port,
			Destination: t.Node.WeaveIP,
		}
		if err := e.deps.Facade.EnsureNATRule(ctx, rule); err != nil {
			metrics.RecordStepError("nat")
			logger.Error().Err(err).Str("rule", rule.String()).Msg("Failed to assert NAT rule")
			continue
		}
		logger.Info().Str("rule", rule.String()).Msg("NAT rule asserted")
	}
}
