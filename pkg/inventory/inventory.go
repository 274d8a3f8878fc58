package inventory

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/storage"
	"github.com/cuemby/clusteragent/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	ErrClusterNotFound   = errors.New("cluster is not found")
	ErrProviderNotFound  = errors.New("provider is not found")
	ErrAmbiguousProvider = errors.New("more than one provider matches this host")
)

// DefaultDNSDomain is the overlay DNS domain older node records assume
const DefaultDNSDomain = "gluu.local"

// Inventory is the typed, read-only view over the desired-state store
type Inventory struct {
	store     storage.Store
	dnsDomain string
	logger    zerolog.Logger
}

// New creates an inventory over store. dnsDomain is used to derive domain
// names for node records that predate the domain_name field.
func New(store storage.Store, dnsDomain string) *Inventory {
	if dnsDomain == "" {
		dnsDomain = DefaultDNSDomain
	}
	return &Inventory{
		store:     store,
		dnsDomain: dnsDomain,
		logger:    log.WithComponent("inventory"),
	}
}

// WithLogger replaces the inventory's logger
func (i *Inventory) WithLogger(logger zerolog.Logger) *Inventory {
	i.logger = logger
	return i
}

// Empty reports whether the store holds no desired state at all
func (i *Inventory) Empty() bool {
	return i.store.Empty()
}

// Cluster returns the deployment's cluster singleton
func (i *Inventory) Cluster() (*types.Cluster, error) {
	r, err := i.store.GetSingleton(storage.TableClusters)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrClusterNotFound
		}
		return nil, err
	}

	var cluster types.Cluster
	if err := decode(r, &cluster); err != nil {
		return nil, fmt.Errorf("failed to decode cluster: %w", err)
	}
	return &cluster, nil
}

// LocalProvider returns the single provider whose hostname matches one of
// hostnames. Zero or several matching records are both errors.
func (i *Inventory) LocalProvider(hostnames []string) (*types.Provider, error) {
	hostnames = lo.Uniq(lo.Compact(hostnames))
	if len(hostnames) == 0 {
		return nil, ErrProviderNotFound
	}

	q := storage.Or(lo.Map(hostnames, func(h string, _ int) storage.Query {
		return storage.Where("hostname").Eq(h)
	})...)

	records, err := i.store.FindAll(storage.TableProviders, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}

	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%w (hostnames: %s)", ErrProviderNotFound, strings.Join(hostnames, ", "))
	case 1:
	default:
		return nil, fmt.Errorf("%w (%d records for %s)", ErrAmbiguousProvider, len(records), strings.Join(hostnames, ", "))
	}

	var provider types.Provider
	if err := decode(records[0], &provider); err != nil {
		return nil, fmt.Errorf("failed to decode provider: %w", err)
	}
	return &provider, nil
}

// ProviderNodes returns the provider's nodes in the given state, in
// insertion order. Records that cannot be decoded are logged and left out.
func (i *Inventory) ProviderNodes(providerID string, state types.NodeState) ([]*types.Node, error) {
	return i.nodes(storage.And(
		storage.Where("provider_id").Eq(providerID),
		storage.Where("state").Eq(string(state)),
	))
}

// NodesByRole returns every node of a role in the given state. A non-empty
// clusterID restricts the result to that cluster's nodes; records without a
// cluster_id belong to the deployment's only cluster and always match.
func (i *Inventory) NodesByRole(clusterID string, role types.Role, state types.NodeState) ([]*types.Node, error) {
	nodes, err := i.nodes(storage.And(
		storage.Where("type").Eq(string(role)),
		storage.Where("state").Eq(string(state)),
	))
	if err != nil {
		return nil, err
	}
	return lo.Filter(nodes, func(n *types.Node, _ int) bool {
		return clusterID == "" || n.ClusterID == "" || n.ClusterID == clusterID
	}), nil
}

// ProviderNodesByRole returns the provider's nodes of a role in the given state
func (i *Inventory) ProviderNodesByRole(providerID string, role types.Role, state types.NodeState) ([]*types.Node, error) {
	return i.nodes(storage.And(
		storage.Where("provider_id").Eq(providerID),
		storage.Where("type").Eq(string(role)),
		storage.Where("state").Eq(string(state)),
	))
}

func (i *Inventory) nodes(q storage.Query) ([]*types.Node, error) {
	records, err := i.store.FindAll(storage.TableNodes, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	nodes := make([]*types.Node, 0, len(records))
	for _, r := range records {
		var node types.Node
		if err := decode(r, &node); err != nil {
			metrics.RecordStepError("decode")
			i.logger.Error().
				Err(err).
				Str("node_id", fmt.Sprint(r["id"])).
				Msg("Skipping node record that cannot be decoded")
			continue
		}
		if node.DomainName == "" {
			node.DomainName = DomainName(node.ID, node.Role, i.dnsDomain)
		}
		nodes = append(nodes, &node)
	}
	return nodes, nil
}

// DomainName derives the DNS name used for nodes without an explicit one
func DomainName(id string, role types.Role, dnsDomain string) string {
	return fmt.Sprintf("%s.%s.%s", id, role, dnsDomain)
}

// LocalHostnames returns the machine's fully-qualified and short hostnames
func LocalHostnames() []string {
	host, err := os.Hostname()
	if err != nil {
		return nil
	}

	names := []string{fqdn(host), host}
	if short, _, ok := strings.Cut(host, "."); ok {
		names = append(names, short)
	}
	return lo.Uniq(lo.Compact(names))
}

func fqdn(host string) string {
	if strings.Contains(host, ".") {
		return host
	}
	cname, err := net.LookupCNAME(host)
	if err != nil {
		return host
	}
	return strings.TrimSuffix(cname, ".")
}

func decode(r storage.Record, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}(r))
}
