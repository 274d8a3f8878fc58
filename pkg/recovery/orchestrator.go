package recovery

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/executor"
	"github.com/cuemby/clusteragent/pkg/facade"
	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/network"
	"github.com/cuemby/clusteragent/pkg/security"
	"github.com/cuemby/clusteragent/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Inventory is the desired state a pass reads
type Inventory interface {
	Empty() bool
	Cluster() (*types.Cluster, error)
	LocalProvider(hostnames []string) (*types.Provider, error)
	ProviderNodes(providerID string, state types.NodeState) ([]*types.Node, error)
}

// Executors resolves the post-recovery executor of a role
type Executors interface {
	Lookup(role types.Role) (executor.Executor, bool)
}

// Orchestrator runs recovery passes for the local provider
type Orchestrator struct {
	inventory Inventory
	facade    facade.Facade
	executors Executors
	cfg       config.Config
	hostnames []string
	logger    zerolog.Logger
}

// NewOrchestrator creates an orchestrator. hostnames are the names this
// machine answers to, matched against provider records.
func NewOrchestrator(inv Inventory, f facade.Facade, executors Executors, cfg config.Config, hostnames []string) *Orchestrator {
	return &Orchestrator{
		inventory: inv,
		facade:    f,
		executors: executors,
		cfg:       cfg,
		hostnames: hostnames,
		logger:    log.WithComponent("recovery"),
	}
}

// WithLogger replaces the orchestrator's logger
func (o *Orchestrator) WithLogger(logger zerolog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// Execute runs one recovery pass: overlay router, the provider's nodes in
// priority order, then the monitoring sidecar. It returns an error only when
// the pass cannot proceed; per-node failures are logged and the pass goes on.
func (o *Orchestrator) Execute(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PassDuration)

	if o.inventory.Empty() {
		o.logger.Warn().Msg("Store holds no desired state, nothing to recover")
		metrics.PassesTotal.WithLabelValues(metrics.PassSkipped).Inc()
		return nil
	}

	cluster, provider, err := o.resolve()
	if err != nil {
		return o.fatal(err)
	}

	logger := log.WithProviderID(o.logger, provider.ID).With().
		Str("provider_type", string(provider.Type)).
		Logger()
	logger.Info().Msg("Recovering provider")

	if err := o.recoverRouter(ctx, logger, provider, cluster); err != nil {
		return o.fatal(fmt.Errorf("failed to recover overlay router: %w", err))
	}

	nodes, err := o.localNodes(provider)
	if err != nil {
		return o.fatal(err)
	}
	for _, node := range nodes {
		o.recoverNode(ctx, node, provider, cluster)
	}

	if err := o.recoverSidecar(ctx, logger, provider, cluster); err != nil {
		return o.fatal(fmt.Errorf("failed to recover monitoring sidecar: %w", err))
	}

	metrics.PassesTotal.WithLabelValues(metrics.PassCompleted).Inc()
	metrics.LastPassTimestamp.SetToCurrentTime()
	logger.Info().
		Int("nodes", len(nodes)).
		Dur("elapsed", timer.Duration()).
		Msg("Recovery pass finished")
	return nil
}

func (o *Orchestrator) fatal(err error) error {
	metrics.PassesTotal.WithLabelValues(metrics.PassFatal).Inc()
	o.logger.Error().Err(err).Msg("Recovery pass aborted")
	return err
}

// resolve finds the cluster singleton and the provider record for this host
func (o *Orchestrator) resolve() (*types.Cluster, *types.Provider, error) {
	cluster, err := o.inventory.Cluster()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfigResolution, err)
	}

	provider, err := o.inventory.LocalProvider(o.hostnames)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfigResolution, err)
	}
	return cluster, provider, nil
}

// localNodes returns the provider's SUCCESS and DISABLED nodes in recovery
// order. Disabled nodes are recovered too so they can be re-enabled later.
func (o *Orchestrator) localNodes(provider *types.Provider) ([]*types.Node, error) {
	success, err := o.inventory.ProviderNodes(provider.ID, types.NodeStateSuccess)
	if err != nil {
		return nil, err
	}
	disabled, err := o.inventory.ProviderNodes(provider.ID, types.NodeStateDisabled)
	if err != nil {
		return nil, err
	}
	return SortByPriority(append(success, disabled...)), nil
}

func (o *Orchestrator) recoverRouter(ctx context.Context, logger zerolog.Logger, provider *types.Provider, cluster *types.Cluster) error {
	router := o.cfg.Overlay.RouterContainer

	running, err := o.facade.IsRunning(ctx, router)
	if err != nil {
		return err
	}
	if running {
		logger.Info().Str("container", router).Msg("Overlay router is already running")
		return nil
	}

	logger.Warn().Str("container", router).Msg("Overlay router is not running, launching")

	opts := network.RouterOptions{IPRange: cluster.WeaveIPNetwork}
	if o.cfg.Overlay.Encrypted {
		opts.Password, err = security.DecryptText(cluster.AdminPassword, cluster.Passkey)
		if err != nil {
			return fmt.Errorf("%w: failed to decrypt admin password: %w", ErrConfigResolution, err)
		}
	}

	if !provider.IsMaster() {
		master, err := readMasterAddress(o.cfg.Overlay.PeerConfig)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfigResolution, err)
		}
		opts.Peers = []string{master}
		logger.Info().Str("master", master).Msg("Joining master's overlay network")
	}

	if err := o.facade.LaunchRouter(ctx, opts); err != nil {
		return err
	}

	exposed, err := network.ExposedAddress(cluster.WeaveIPNetwork)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigResolution, err)
	}
	if err := o.facade.ExposeAddress(ctx, exposed); err != nil {
		return err
	}

	logger.Info().Str("exposed", exposed).Msg("Overlay router launched")
	return nil
}

func (o *Orchestrator) recoverNode(ctx context.Context, node *types.Node, provider *types.Provider, cluster *types.Cluster) {
	logger := log.WithNode(o.logger, node.ID, string(node.Role))
	role := string(node.Role)

	running, err := o.facade.IsRunning(ctx, node.ID)
	if err != nil {
		metrics.RecordStepError("inspect")
		metrics.RecordNode(role, metrics.OutcomeFailed)
		logger.Error().Err(err).Msg("Failed to inspect node container")
		return
	}

	if running {
		// the router may have been relaunched by another tool and lost its
		// registrations
		logger.Info().Msg("Node is already running")
		o.addDNSRecords(ctx, logger, node)
		metrics.RecordNode(role, metrics.OutcomeHealthy)
		return
	}

	logger.Warn().Str("state", string(node.State)).Msg("Node is not running, restarting")
	if err := o.facade.Restart(ctx, node.ID); err != nil {
		metrics.RecordStepError("restart")
		metrics.RecordNode(role, metrics.OutcomeFailed)
		logger.Error().Err(err).Msg("Failed to restart node container")
		return
	}

	if node.State == types.NodeStateSuccess {
		o.attachAddress(ctx, logger, node)
		o.addDNSRecords(ctx, logger, node)
	}

	if e, ok := o.executors.Lookup(node.Role); ok {
		logger.Info().Msg("Running entrypoint")
		e.RunEntrypoint(ctx, executor.Target{Node: node, Provider: provider, Cluster: cluster})
	}
	metrics.RecordNode(role, metrics.OutcomeRestarted)
}

func (o *Orchestrator) attachAddress(ctx context.Context, logger zerolog.Logger, node *types.Node) {
	if !node.HasAddress() {
		metrics.RecordStepError("attach")
		logger.Error().Str("weave_ip", node.WeaveIP).Msg("Node has no valid overlay address")
		return
	}

	cidr := node.CIDR()
	if err := o.facade.AttachAddress(ctx, cidr, node.ID); err != nil {
		metrics.RecordStepError("attach")
		logger.Error().Err(err).Str("cidr", cidr).Msg("Failed to attach overlay address")
		return
	}
	logger.Info().Str("cidr", cidr).Msg("Attached overlay address")
}

// addDNSRecords registers the node's domain name, plus the shared alias for
// directory nodes
func (o *Orchestrator) addDNSRecords(ctx context.Context, logger zerolog.Logger, node *types.Node) {
	hostnames := []string{node.DomainName}
	if node.Role == types.RoleLDAP && o.cfg.Directory.Alias != "" {
		hostnames = append(hostnames, o.cfg.Directory.Alias)
	}

	for _, hostname := range hostnames {
		if err := o.facade.AddDNSRecord(ctx, node.ID, hostname); err != nil {
			metrics.RecordStepError("dns")
			logger.Error().Err(err).Str("hostname", hostname).Msg("Failed to add DNS record")
			continue
		}
		logger.Debug().Str("hostname", hostname).Msg("DNS record present")
	}
}

func (o *Orchestrator) recoverSidecar(ctx context.Context, logger zerolog.Logger, provider *types.Provider, cluster *types.Cluster) error {
	if !provider.IsMaster() {
		return nil
	}
	sidecar := o.cfg.Sidecar.Container

	running, err := o.facade.IsRunning(ctx, sidecar)
	if err != nil {
		return err
	}
	if running {
		logger.Info().Str("container", sidecar).Msg("Monitoring sidecar is already running")
		return nil
	}

	logger.Warn().Str("container", sidecar).Msg("Monitoring sidecar is not running, restarting")
	if err := o.facade.Restart(ctx, sidecar); err != nil {
		return err
	}

	cidr, err := network.SidecarAddress(cluster.WeaveIPNetwork)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigResolution, err)
	}
	if err := o.facade.AttachAddress(ctx, cidr, sidecar); err != nil {
		metrics.RecordStepError("attach")
		logger.Error().Err(err).Str("cidr", cidr).Msg("Failed to attach sidecar address")
		return nil
	}

	logger.Info().Str("cidr", cidr).Msg("Monitoring sidecar recovered")
	return nil
}

// peerConfig is the part of the local peer configuration the agent reads
type peerConfig struct {
	Master string `yaml:"master"`
}

// readMasterAddress returns the master address from the peer config file
func readMasterAddress(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read peer config: %w", err)
	}

	var cfg peerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse peer config %s: %w", path, err)
	}
	if cfg.Master == "" {
		return "", fmt.Errorf("peer config %s has no master address", path)
	}
	return cfg.Master, nil
}
