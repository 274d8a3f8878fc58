package executor

import (
	"context"
	"time"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/facade"
	"github.com/cuemby/clusteragent/pkg/health"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/types"
	"github.com/rs/zerolog"
)

// Target is the resolved context a post-recovery entrypoint runs against
type Target struct {
	Node     *types.Node
	Provider *types.Provider
	Cluster  *types.Cluster
}

// Executor runs a role's post-recovery fixups against a restarted node.
// Failures are logged and handled inside the executor; none are returned.
type Executor interface {
	RunEntrypoint(ctx context.Context, t Target)
}

// NodeSource is the read-only node lookup executors need
type NodeSource interface {
	NodesByRole(clusterID string, role types.Role, state types.NodeState) ([]*types.Node, error)
	ProviderNodesByRole(providerID string, role types.Role, state types.NodeState) ([]*types.Node, error)
}

// Deps are shared by every executor in a registry
type Deps struct {
	Facade facade.Facade
	Nodes  NodeSource
	Config config.Config
	Logger zerolog.Logger

	// NewProbe builds the readiness checker for a host:port address.
	// Defaults to a TCP connect.
	NewProbe func(address string) health.Checker

	// Sleep blocks for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Registry maps roles to their executors
type Registry struct {
	executors map[types.Role]Executor
}

// NewRegistry creates a registry holding the executor of every known role
func NewRegistry(deps Deps) *Registry {
	if deps.NewProbe == nil {
		deps.NewProbe = func(address string) health.Checker {
			return health.NewTCPChecker(address)
		}
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}

	auth := &Auth{deps: deps}

	r := &Registry{executors: make(map[types.Role]Executor)}
	r.Register(types.RoleLDAP, &Directory{deps: deps})
	r.Register(types.RoleOxAuth, auth)
	r.Register(types.RoleOxIdp, &Idp{auth: auth})
	r.Register(types.RoleOxTrust, &Trust{deps: deps, auth: auth})
	r.Register(types.RoleNginx, &Edge{deps: deps})
	return r
}

// Register sets or replaces the executor for role
func (r *Registry) Register(role types.Role, e Executor) {
	r.executors[role] = e
}

// Lookup returns the executor for role, if one exists
func (r *Registry) Lookup(role types.Role) (Executor, bool) {
	e, ok := r.executors[role]
	return e, ok
}

// stopNode logs a failed fixup step and stops the node's container. A node
// whose dependencies cannot be wired is not worth leaving up.
func stopNode(ctx context.Context, f facade.Facade, logger zerolog.Logger, containerID, step string, err error) {
	metrics.RecordStepError(step)
	logger.Error().Err(err).Str("step", step).Msg("Fixup failed, stopping container")

	if stopErr := f.Stop(ctx, containerID); stopErr != nil {
		metrics.RecordStepError("stop")
		logger.Error().Err(stopErr).Msg("Failed to stop container")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
