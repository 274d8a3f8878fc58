package types

import (
	"fmt"
	"net"
)

// Cluster is the per-deployment singleton record
type Cluster struct {
	ID             string `mapstructure:"id"`
	WeaveIPNetwork string `mapstructure:"weave_ip_network"` // Overlay network CIDR
	AdminPassword  string `mapstructure:"admin_pw"`         // Encrypted with Passkey
	Passkey        string `mapstructure:"passkey"`
	PublicHostname string `mapstructure:"ox_cluster_hostname"`
}

// Provider is a physical or virtual machine hosting nodes
type Provider struct {
	ID       string       `mapstructure:"id"`
	Type     ProviderType `mapstructure:"type"`
	Hostname string       `mapstructure:"hostname"`
}

// ProviderType defines the role of a provider within the cluster
type ProviderType string

const (
	ProviderTypeMaster   ProviderType = "master"
	ProviderTypeConsumer ProviderType = "consumer"
)

// IsMaster reports whether the provider is the cluster's master
func (p *Provider) IsMaster() bool {
	return p.Type == ProviderTypeMaster
}

// Node is one managed container. Its ID is also the container ID in the runtime.
type Node struct {
	ID             string    `mapstructure:"id"`
	ClusterID      string    `mapstructure:"cluster_id"`
	ProviderID     string    `mapstructure:"provider_id"`
	Role           Role      `mapstructure:"type"`
	State          NodeState `mapstructure:"state"`
	WeaveIP        string    `mapstructure:"weave_ip"`
	WeavePrefixLen int       `mapstructure:"weave_prefixlen"`
	DomainName     string    `mapstructure:"domain_name"`

	// Role-specific fields
	TruststoreFile string `mapstructure:"truststore_fn"`
}

// CIDR returns the node's overlay address in address/prefix form
func (n *Node) CIDR() string {
	return fmt.Sprintf("%s/%d", n.WeaveIP, n.WeavePrefixLen)
}

// HasAddress reports whether the node carries a parseable overlay IP
func (n *Node) HasAddress() bool {
	return net.ParseIP(n.WeaveIP) != nil
}

// Role is the service class a node runs
type Role string

const (
	RoleLDAP    Role = "ldap"    // directory
	RoleOxAuth  Role = "oxauth"  // auth
	RoleOxTrust Role = "oxtrust" // trust/UI
	RoleOxIdp   Role = "oxidp"   // identity provider
	RoleNginx   Role = "nginx"   // edge proxy
)

// NodeState is the provisioning lifecycle state of a node
type NodeState string

const (
	NodeStateSuccess  NodeState = "SUCCESS"
	NodeStateDisabled NodeState = "DISABLED"
)
