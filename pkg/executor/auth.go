package executor

import (
	"context"

	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/types"
)

// Auth points the node's hosts file at every healthy directory node of the
// cluster
type Auth struct {
	deps Deps
}

func (a *Auth) RunEntrypoint(ctx context.Context, t Target) {
	a.ensureDirectoryAliases(ctx, t)
}

// ensureDirectoryAliases reports whether every alias is in place. On a
// failed alias the node is stopped and false is returned.
func (a *Auth) ensureDirectoryAliases(ctx context.Context, t Target) bool {
	logger := log.WithNode(a.deps.Logger, t.Node.ID, string(t.Node.Role))

	directories, err := a.deps.Nodes.NodesByRole(t.Cluster.ID, types.RoleLDAP, types.NodeStateSuccess)
	if err != nil {
		metrics.RecordStepError("hosts")
		logger.Error().Err(err).Msg("Failed to look up directory nodes")
		return false
	}

	for _, dir := range directories {
		if !dir.HasAddress() {
			logger.Warn().Str("directory", dir.ID).Msg("Directory node has no overlay address, skipping alias")
			continue
		}

		alias := HostAlias{IP: dir.WeaveIP, Hostname: dir.ID}
		if err := EnsureHostAlias(ctx, a.deps.Facade, t.Node.ID, alias); err != nil {
			stopNode(ctx, a.deps.Facade, logger, t.Node.ID, "hosts", err)
			return false
		}
		logger.Debug().Str("alias", alias.Line()).Msg("Directory alias present")
	}
	return true
}

// Idp runs the auth role's directory aliasing for identity provider nodes
type Idp struct {
	auth *Auth
}

func (i *Idp) RunEntrypoint(ctx context.Context, t Target) {
	i.auth.ensureDirectoryAliases(ctx, t)
}
