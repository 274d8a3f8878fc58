/*
Package network wraps the host-side network plumbing the recovery agent
touches: the weave overlay network, netfilter NAT rules, and overlay address
arithmetic.

# Overlay

Weave shells out to the weave CLI:

	weave launch-router --password P --dns-domain gluu.local \
	    --ipalloc-range 10.2.1.0/24 --ipalloc-default-subnet 10.2.1.0/24 [peer]
	weave expose 10.2.1.254/24
	weave attach 10.2.1.7/24 <container>
	weave dns-add <container> -h <hostname>

Attach and AddDNS failures wrap ErrAttach so callers can log them as
non-fatal network attach errors.

# Reserved Addresses

The top of the cluster CIDR is reserved: the broadcast address is unusable,
the address below it is exposed on every machine, and the next one belongs to
the monitoring sidecar on the master.

	10.1.1.0/24
	├── 10.1.1.255  broadcast
	├── 10.1.1.254  ExposedAddress
	└── 10.1.1.253  SidecarAddress

# NAT Rules

iptables rules are not persisted across container restarts, so the edge
proxy's DNAT rules are reasserted on every pass. NATTable.EnsureSingle deletes
every existing copy of a rule (iptables -D until it exits 1) and appends one,
leaving exactly one active rule per port however often recovery runs.
*/
package network
